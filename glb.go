package cadmesh

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const generator = "go-cadmesh"

// BuildDocument lays mesh out as a single-primitive glTF document: float32
// positions and normals, uint16 indices when every vertex fits, uint32
// otherwise.
func BuildDocument(mesh *Mesh) (*gltf.Document, error) {
	if mesh.IsEmpty() {
		return nil, errors.New("mesh is empty")
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if len(mesh.Normals) != len(mesh.Vertices) {
		mesh = mesh.Clone()
		mesh.ReComputeNormal()
	}

	positions := make([][3]float32, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		positions[i] = [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
	}
	normals := make([][3]float32, len(mesh.Normals))
	for i, n := range mesh.Normals {
		normals[i] = [3]float32(n)
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = generator

	posAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	var indicesAccessor uint32
	if len(mesh.Vertices) <= 65535 {
		indices := make([]uint16, 0, len(mesh.Faces)*3)
		for _, f := range mesh.Faces {
			indices = append(indices, uint16(f[0]), uint16(f[1]), uint16(f[2]))
		}
		indicesAccessor = modeler.WriteIndices(doc, indices)
	} else {
		indices := make([]uint32, 0, len(mesh.Faces)*3)
		for _, f := range mesh.Faces {
			indices = append(indices, f[0], f[1], f[2])
		}
		indicesAccessor = modeler.WriteIndices(doc, indices)
	}

	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: posAccessor,
			gltf.NORMAL:   normalAccessor,
		},
		Indices: gltf.Index(indicesAccessor),
		Mode:    gltf.PrimitiveTriangles,
	}
	doc.Meshes = []*gltf.Mesh{{Name: "mesh", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: "root", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc, nil
}

// Export writes mesh to outputPath as a binary GLB and returns the path. The
// file appears atomically: it is written next to the target and renamed.
func Export(mesh *Mesh, outputPath string) (string, error) {
	doc, err := BuildDocument(mesh)
	if err != nil {
		return "", newError(ErrExport, "export", outputPath, err)
	}
	err = writeAtomic(outputPath, func(tmp string) error {
		return gltf.SaveBinary(doc, tmp)
	})
	if err != nil {
		return "", newError(ErrExport, "export", outputPath, err)
	}
	return outputPath, nil
}

// CopyFile copies src to dst byte for byte. Used for GLB/GLTF inputs, which
// are already valid containers.
func CopyFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", newError(ErrFileNotFound, "copy", src, err)
		}
		return "", newError(ErrExport, "copy", src, err)
	}
	defer in.Close()

	err = writeAtomic(dst, func(tmp string) error {
		out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
	if err != nil {
		return "", newError(ErrExport, "copy", dst, err)
	}
	return dst, nil
}

// writeAtomic runs write against a temporary sibling of path and renames it
// into place. The temporary file is removed on any failure.
func writeAtomic(path string, write func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.part", filepath.Base(path), uuid.NewString()))
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
