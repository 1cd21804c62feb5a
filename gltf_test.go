package cadmesh

import (
	"path/filepath"
	"testing"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGltfReader_MultiNodeScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.glb")
	triangleScene(t, path)

	scene, err := NewGltfReader().ReadScene(path)
	require.NoError(t, err)
	assert.Len(t, scene.Geometry, 1, "shared mesh is decoded once")
	assert.Equal(t, 3, scene.MeshNodeCount())

	mesh, err := NewGltfReader().Read(path)
	require.NoError(t, err)
	assert.Equal(t, 9, mesh.VertexCount())
	assert.Equal(t, 3, mesh.TriangleCount())

	assert.Equal(t, vec3d.T{0, 0, 0}, mesh.Vertices[0])
	assert.Equal(t, vec3d.T{10, 0, 0}, mesh.Vertices[3])
	assert.Equal(t, vec3d.T{11, 0, 0}, mesh.Vertices[4])
	assert.Equal(t, vec3d.T{0, 0, 5}, mesh.Vertices[6])
	assert.Equal(t, [3]uint32{6, 7, 8}, mesh.Faces[2])
}

func TestGltfReader_NestedTransforms(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{
		Attributes: map[string]uint32{gltf.POSITION: pos},
	}}}}
	parent := meshNode("parent", 0, [3]float32{1, 2, 3})
	parent.Mesh = nil
	parent.Scale = [3]float32{2, 2, 2}
	parent.Children = []uint32{1}
	child := meshNode("child", 0, [3]float32{1, 0, 0})
	camera := meshNode("camera", 0, [3]float32{})
	camera.Mesh = nil
	doc.Nodes = []*gltf.Node{parent, child, camera}
	doc.Scenes[0].Nodes = []uint32{0, 2}

	scene, err := NewGltfReader().SceneFromDoc(doc)
	require.NoError(t, err)
	require.Len(t, scene.Nodes, 3)
	assert.Equal(t, "", scene.Nodes[0].Geometry)

	mesh, err := Flatten(scene)
	require.NoError(t, err)
	require.Equal(t, 3, mesh.VertexCount())
	// world = T(1,2,3) S(2) T(1,0,0)
	assert.InDeltaSlice(t, []float64{3, 2, 3}, mesh.Vertices[0][:], 1e-6)
	assert.InDeltaSlice(t, []float64{5, 2, 3}, mesh.Vertices[1][:], 1e-6)
	assert.InDeltaSlice(t, []float64{3, 4, 3}, mesh.Vertices[2][:], 1e-6)
}

func TestGltfReader_NonIndexedAndNonTriangle(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 1}, {0, 1, 1}})
	doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{
		{Attributes: map[string]uint32{gltf.POSITION: pos}},
		{Attributes: map[string]uint32{gltf.POSITION: pos}, Mode: gltf.PrimitiveLines},
	}}}
	doc.Nodes = []*gltf.Node{meshNode("n", 0, [3]float32{})}
	doc.Scenes[0].Nodes = []uint32{0}

	scene, err := NewGltfReader().SceneFromDoc(doc)
	require.NoError(t, err)
	mesh, err := Flatten(scene)
	require.NoError(t, err)
	assert.Equal(t, 2, mesh.TriangleCount(), "line primitives are ignored")
}

func TestGltfReader_BadIndex(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 9})
	doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{
		Attributes: map[string]uint32{gltf.POSITION: pos},
		Indices:    gltf.Index(idx),
	}}}}
	doc.Nodes = []*gltf.Node{meshNode("n", 0, [3]float32{})}
	doc.Scenes[0].Nodes = []uint32{0}

	_, err := NewGltfReader().SceneFromDoc(doc)
	assert.Error(t, err)
}

func TestGltfReader_BadAccessor(t *testing.T) {
	build := func() *gltf.Document {
		doc := gltf.NewDocument()
		pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
		doc.Accessors[pos].ByteOffset = 64
		doc.Accessors[pos].Count = 0
		doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{
			Attributes: map[string]uint32{gltf.POSITION: pos},
		}}}}
		doc.Nodes = []*gltf.Node{meshNode("n", 0, [3]float32{})}
		doc.Scenes[0].Nodes = []uint32{0}
		return doc
	}

	_, err := NewGltfReader().SceneFromDoc(build())
	assert.ErrorContains(t, err, "exceeds its buffer view")

	path := filepath.Join(t.TempDir(), "corrupt.glb")
	require.NoError(t, gltf.SaveBinary(build(), path))
	_, err = NewGltfReader().Read(path)
	assert.ErrorIs(t, err, ErrLoad)
}

func TestGltfReader_EmptyScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.glb")
	doc := gltf.NewDocument()
	doc.Nodes = []*gltf.Node{meshNode("light", 0, [3]float32{})}
	doc.Nodes[0].Mesh = nil
	doc.Scenes[0].Nodes = []uint32{0}
	require.NoError(t, gltf.SaveBinary(doc, path))

	_, err := NewGltfReader().Read(path)
	assert.ErrorIs(t, err, ErrEmptyScene)
}

func TestToMatPrefersMatrix(t *testing.T) {
	nd := &gltf.Node{Matrix: [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 7, 8, 9, 1}}
	m := toMat(nd)
	v := m.MulVec3(&vec3d.T{0, 0, 0})
	assert.Equal(t, vec3d.T{7, 8, 9}, v)

	nd = &gltf.Node{Translation: [3]float32{1, 1, 1}}
	m = toMat(nd)
	v = m.MulVec3(&vec3d.T{1, 0, 0})
	assert.Equal(t, vec3d.T{2, 1, 1}, v, "zero scale and rotation mean identity")
	assert.False(t, isMirroring(&m))

}
