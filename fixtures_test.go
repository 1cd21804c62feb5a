package cadmesh

import (
	"math"
	"path/filepath"
	"testing"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/hschendel/stl"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/require"
)

// writeSTL stores mesh as a binary STL soup.
func writeSTL(t *testing.T, path string, mesh *Mesh) {
	t.Helper()
	solid := &stl.Solid{Name: "fixture"}
	for _, f := range mesh.Faces {
		var tri stl.Triangle
		for k, idx := range f {
			v := mesh.Vertices[idx]
			tri.Vertices[k] = stl.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
		}
		n := faceCross(&mesh.Vertices[f[0]], &mesh.Vertices[f[1]], &mesh.Vertices[f[2]])
		if l := n.Length(); l > 0 {
			tri.Normal = stl.Vec3{float32(n[0] / l), float32(n[1] / l), float32(n[2] / l)}
		}
		solid.Triangles = append(solid.Triangles, tri)
	}
	require.NoError(t, solid.WriteFile(path))
}

func cubeSTL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cube.stl")
	writeSTL(t, path, unitCube())
	return path
}

// icosphere returns a closed unit sphere with 20 * 4^level triangles.
func icosphere(level int) *Mesh {
	p := (1 + math.Sqrt(5)) / 2
	m := &Mesh{
		Vertices: []vec3d.T{
			{-1, p, 0}, {1, p, 0}, {-1, -p, 0}, {1, -p, 0},
			{0, -1, p}, {0, 1, p}, {0, -1, -p}, {0, 1, -p},
			{p, 0, -1}, {p, 0, 1}, {-p, 0, -1}, {-p, 0, 1},
		},
		Faces: [][3]uint32{
			{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
			{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
			{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
			{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
		},
	}
	for i := range m.Vertices {
		normalize(&m.Vertices[i])
	}
	for l := 0; l < level; l++ {
		mid := make(map[[2]uint32]uint32)
		midpoint := func(a, b uint32) uint32 {
			key := edgeKey(a, b)
			if idx, ok := mid[key]; ok {
				return idx
			}
			va, vb := m.Vertices[a], m.Vertices[b]
			v := vec3d.T{(va[0] + vb[0]) / 2, (va[1] + vb[1]) / 2, (va[2] + vb[2]) / 2}
			normalize(&v)
			idx := uint32(len(m.Vertices))
			m.Vertices = append(m.Vertices, v)
			mid[key] = idx
			return idx
		}
		var faces [][3]uint32
		for _, f := range m.Faces {
			a := midpoint(f[0], f[1])
			b := midpoint(f[1], f[2])
			c := midpoint(f[2], f[0])
			faces = append(faces,
				[3]uint32{f[0], a, c},
				[3]uint32{f[1], b, a},
				[3]uint32{f[2], c, b},
				[3]uint32{a, b, c})
		}
		m.Faces = faces
	}
	return m
}

// tetrahedron returns a closed, outward wound unit tetrahedron at origin.
func tetrahedron(origin vec3d.T) *Mesh {
	m := &Mesh{
		Vertices: []vec3d.T{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Faces:    [][3]uint32{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	}
	for i := range m.Vertices {
		m.Vertices[i].Add(&origin)
	}
	return m
}

func normalize(v *vec3d.T) {
	l := v.Length()
	v[0], v[1], v[2] = v[0]/l, v[1]/l, v[2]/l
}

// grid returns an open n x n quad grid in the z=0 plane, 2*n*n triangles.
func grid(n int) *Mesh {
	m := NewMesh()
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			m.Vertices = append(m.Vertices, vec3d.T{float64(x), float64(y), 0})
		}
	}
	row := uint32(n + 1)
	for y := uint32(0); y < uint32(n); y++ {
		for x := uint32(0); x < uint32(n); x++ {
			i := y*row + x
			m.Faces = append(m.Faces,
				[3]uint32{i, i + 1, i + row + 1},
				[3]uint32{i, i + row + 1, i + row})
		}
	}
	return m
}

// triangleScene writes a glTF document with one shared unit triangle placed
// by three translated nodes.
func triangleScene(t *testing.T, path string) {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]uint32{gltf.POSITION: pos},
			Indices:    gltf.Index(idx),
		}},
	}}
	doc.Nodes = []*gltf.Node{
		meshNode("a", 0, [3]float32{0, 0, 0}),
		meshNode("b", 0, [3]float32{10, 0, 0}),
		meshNode("c", 0, [3]float32{0, 0, 5}),
	}
	doc.Scenes[0].Nodes = []uint32{0, 1, 2}
	require.NoError(t, gltf.SaveBinary(doc, path))
}

func meshNode(name string, mesh uint32, translation [3]float32) *gltf.Node {
	return &gltf.Node{
		Name:        name,
		Mesh:        gltf.Index(mesh),
		Matrix:      identityMatrix,
		Rotation:    [4]float32{0, 0, 0, 1},
		Scale:       [3]float32{1, 1, 1},
		Translation: translation,
	}
}
