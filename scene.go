package cadmesh

import (
	"errors"
	"fmt"

	dmat "github.com/flywave/go3d/float64/mat4"
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// Scene is a set of named geometries plus the nodes placing them. Nodes is
// the already-traversed node DAG: each entry carries its world transform and
// appears once.
type Scene struct {
	Geometry map[string]*Mesh
	Nodes    []SceneNode
}

// SceneNode places one geometry. An empty Geometry marks a node without mesh
// content (camera, light, empty transform group).
type SceneNode struct {
	Name      string
	Transform dmat.T
	Geometry  string
}

func NewScene() *Scene {
	return &Scene{Geometry: make(map[string]*Mesh)}
}

// AddNode appends a node with the given world transform.
func (s *Scene) AddNode(name, geometry string, transform dmat.T) {
	s.Nodes = append(s.Nodes, SceneNode{Name: name, Transform: transform, Geometry: geometry})
}

// MeshNodeCount counts nodes resolving to a non-empty geometry.
func (s *Scene) MeshNodeCount() int {
	n := 0
	for _, nd := range s.Nodes {
		if g, ok := s.Geometry[nd.Geometry]; ok && g.TriangleCount() > 0 {
			n++
		}
	}
	return n
}

// Flatten bakes every node transform into its geometry and concatenates the
// results into one mesh.
func Flatten(scene *Scene) (*Mesh, error) {
	if scene == nil {
		return nil, newError(ErrEmptyScene, "flatten", "", errors.New("nil scene"))
	}
	out := NewMesh()
	for _, nd := range scene.Nodes {
		if nd.Geometry == "" {
			continue
		}
		geom, ok := scene.Geometry[nd.Geometry]
		if !ok {
			return nil, newError(ErrLoad, "flatten", "",
				fmt.Errorf("node %q references unknown geometry %q", nd.Name, nd.Geometry))
		}
		if geom.TriangleCount() == 0 {
			continue
		}
		out.Append(transformMesh(geom, &nd.Transform))
	}
	if out.TriangleCount() == 0 {
		return nil, newError(ErrEmptyScene, "flatten", "", nil)
	}
	return out, nil
}

func transformMesh(m *Mesh, mat *dmat.T) *Mesh {
	out := &Mesh{
		Vertices: make([]vec3d.T, len(m.Vertices)),
		Faces:    make([][3]uint32, len(m.Faces)),
	}
	for i := range m.Vertices {
		out.Vertices[i] = mat.MulVec3(&m.Vertices[i])
	}
	copy(out.Faces, m.Faces)
	if isMirroring(mat) {
		for i, f := range out.Faces {
			out.Faces[i] = [3]uint32{f[0], f[2], f[1]}
		}
	}
	return out
}

// isMirroring reports a negative determinant in the linear part, which would
// otherwise flip the winding of every transformed face.
func isMirroring(m *dmat.T) bool {
	det := m[0][0]*(m[1][1]*m[2][2]-m[2][1]*m[1][2]) -
		m[1][0]*(m[0][1]*m[2][2]-m[2][1]*m[0][2]) +
		m[2][0]*(m[0][1]*m[1][2]-m[1][1]*m[0][2])
	return det < 0
}
