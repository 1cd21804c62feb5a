package cadmesh

import (
	"fmt"
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec3"
)

// Mesh is an indexed triangle surface. Normals is either empty or holds one
// entry per vertex.
type Mesh struct {
	Vertices []vec3d.T
	Faces    [][3]uint32
	Normals  []vec3.T
}

func NewMesh() *Mesh {
	return &Mesh{}
}

func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Faces)
}

func (m *Mesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices)
}

func (m *Mesh) IsEmpty() bool {
	return m.TriangleCount() == 0 || m.VertexCount() == 0
}

// Validate checks that every face references an existing vertex.
func (m *Mesh) Validate() error {
	n := uint32(len(m.Vertices))
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx >= n {
				return fmt.Errorf("face %d references vertex %d of %d", i, idx, n)
			}
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("%d normals for %d vertices", len(m.Normals), len(m.Vertices))
	}
	return nil
}

func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Vertices: make([]vec3d.T, len(m.Vertices)),
		Faces:    make([][3]uint32, len(m.Faces)),
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Faces, m.Faces)
	if len(m.Normals) > 0 {
		c.Normals = make([]vec3.T, len(m.Normals))
		copy(c.Normals, m.Normals)
	}
	return c
}

// Bounds returns the axis-aligned box over all vertices. ok is false when the
// mesh has no vertices or a coordinate is not finite.
func (m *Mesh) Bounds() (box vec3d.Box, ok bool) {
	box = vec3d.MinBox
	if m.VertexCount() == 0 {
		return box, false
	}
	for i := range m.Vertices {
		v := &m.Vertices[i]
		if !finite(v) {
			return box, false
		}
		box.Extend(v)
	}
	return box, true
}

// Append adds other's geometry after m's, offsetting its indices.
func (m *Mesh) Append(other *Mesh) {
	base := uint32(len(m.Vertices))
	keepNormals := len(m.Normals) == len(m.Vertices) && len(other.Normals) == len(other.Vertices)
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, f := range other.Faces {
		m.Faces = append(m.Faces, [3]uint32{f[0] + base, f[1] + base, f[2] + base})
	}
	if keepNormals {
		m.Normals = append(m.Normals, other.Normals...)
	} else {
		m.Normals = nil
	}
}

// Weld merges vertices with identical positions and drops faces that collapse
// onto fewer than three distinct vertices. STL and OBJ readers produce
// triangle soups; connectivity-aware stages need shared vertices.
func (m *Mesh) Weld() *Mesh {
	out := &Mesh{Faces: make([][3]uint32, 0, len(m.Faces))}
	index := make(map[vec3d.T]uint32, len(m.Vertices))
	remap := make([]uint32, len(m.Vertices))
	for i, v := range m.Vertices {
		id, ok := index[v]
		if !ok {
			id = uint32(len(out.Vertices))
			index[v] = id
			out.Vertices = append(out.Vertices, v)
		}
		remap[i] = id
	}
	for _, f := range m.Faces {
		a, b, c := remap[f[0]], remap[f[1]], remap[f[2]]
		if a == b || b == c || a == c {
			continue
		}
		out.Faces = append(out.Faces, [3]uint32{a, b, c})
	}
	return out
}

// ReComputeNormal replaces Normals with area weighted vertex normals.
func (m *Mesh) ReComputeNormal() {
	acc := make([]vec3d.T, len(m.Vertices))
	for _, f := range m.Faces {
		n := faceCross(&m.Vertices[f[0]], &m.Vertices[f[1]], &m.Vertices[f[2]])
		for _, idx := range f {
			acc[idx].Add(&n)
		}
	}
	m.Normals = make([]vec3.T, len(m.Vertices))
	for i := range acc {
		l := acc[i].Length()
		if l == 0 || math.IsNaN(l) {
			m.Normals[i] = vec3.T{0, 1, 0}
			continue
		}
		m.Normals[i] = vec3.T{float32(acc[i][0] / l), float32(acc[i][1] / l), float32(acc[i][2] / l)}
	}
}

// faceCross is the unnormalized face normal; its length is twice the area.
func faceCross(a, b, c *vec3d.T) vec3d.T {
	e1 := vec3d.Sub(b, a)
	e2 := vec3d.Sub(c, a)
	return vec3d.Cross(&e1, &e2)
}

func finite(v *vec3d.T) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// unitCube is the placeholder geometry for the degraded no-backend mode.
func unitCube() *Mesh {
	return &Mesh{
		Vertices: []vec3d.T{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
			{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
		},
		Faces: [][3]uint32{
			{0, 2, 1}, {0, 3, 2},
			{4, 5, 6}, {4, 6, 7},
			{0, 1, 5}, {0, 5, 4},
			{2, 3, 7}, {2, 7, 6},
			{1, 2, 6}, {1, 6, 5},
			{0, 4, 7}, {0, 7, 3},
		},
	}
}
