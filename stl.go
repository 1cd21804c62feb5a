package cadmesh

import (
	"errors"
	"os"

	"github.com/hschendel/stl"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

// StlReader loads binary and ASCII STL files.
type StlReader struct{}

func NewStlReader() *StlReader {
	return &StlReader{}
}

func (r *StlReader) Read(path string) (*Mesh, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(ErrFileNotFound, "load", path, err)
		}
		return nil, newError(ErrLoad, "load stl", path, err)
	}
	mesh := r.FromSolid(solid)
	if mesh.IsEmpty() {
		return nil, newError(ErrLoad, "load stl", path, errors.New("no triangles"))
	}
	return mesh, nil
}

// FromSolid copies the STL triangle soup into a Mesh; every facet gets its
// own three vertices.
func (r *StlReader) FromSolid(solid *stl.Solid) *Mesh {
	mesh := &Mesh{
		Vertices: make([]vec3d.T, 0, len(solid.Triangles)*3),
		Faces:    make([][3]uint32, 0, len(solid.Triangles)),
	}
	for _, triangle := range solid.Triangles {
		for _, vertex := range triangle.Vertices {
			mesh.Vertices = append(mesh.Vertices, vec3d.T{float64(vertex[0]), float64(vertex[1]), float64(vertex[2])})
		}
		baseIdx := uint32(len(mesh.Vertices) - 3)
		mesh.Faces = append(mesh.Faces, [3]uint32{baseIdx, baseIdx + 1, baseIdx + 2})
	}
	return mesh
}

var _ FormatReader = (*StlReader)(nil)
