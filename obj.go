package cadmesh

import (
	"errors"
	"fmt"
	"os"

	gobj "github.com/flywave/go-obj"
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// ObjReader loads Wavefront OBJ geometry. Materials and texture coordinates
// are ignored; only positions and faces survive into the Mesh.
type ObjReader struct{}

func NewObjReader() *ObjReader {
	return &ObjReader{}
}

func (obj *ObjReader) Read(path string) (*Mesh, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(ErrFileNotFound, "load", path, err)
		}
		return nil, newError(ErrLoad, "load obj", path, err)
	}
	defer file.Close()

	reader := &gobj.ObjReader{}
	if err := reader.Read(file); err != nil {
		return nil, newError(ErrLoad, "load obj", path, err)
	}

	mesh := &Mesh{Vertices: make([]vec3d.T, len(reader.V))}
	for i, v := range reader.V {
		mesh.Vertices[i] = vec3d.T{float64(v[0]), float64(v[1]), float64(v[2])}
	}

	// Polygons are fanned around their first corner.
	for fi, face := range reader.F {
		for t := 1; t+1 < len(face.Corners); t++ {
			var f [3]uint32
			for i, k := range [3]int{0, t, t + 1} {
				corner := face.Corners[k]
				if corner.VertexIndex < 0 || corner.VertexIndex >= len(reader.V) {
					return nil, newError(ErrLoad, "load obj", path,
						fmt.Errorf("face %d references vertex %d of %d", fi, corner.VertexIndex, len(reader.V)))
				}
				f[i] = uint32(corner.VertexIndex)
			}
			mesh.Faces = append(mesh.Faces, f)
		}
	}

	if mesh.IsEmpty() {
		return nil, newError(ErrLoad, "load obj", path, errors.New("no faces"))
	}
	return mesh, nil
}

var _ FormatReader = (*ObjReader)(nil)
