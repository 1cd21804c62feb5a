package cadmesh

import (
	"testing"

	dmat "github.com/flywave/go3d/float64/mat4"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenSkipsNonMeshNodes(t *testing.T) {
	scene := NewScene()
	scene.Geometry["tri"] = &Mesh{
		Vertices: []vec3d.T{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    [][3]uint32{{0, 1, 2}},
	}
	scene.Geometry["empty"] = NewMesh()
	scene.AddNode("camera", "", dmat.Ident)
	scene.AddNode("part", "tri", dmat.Ident)
	scene.AddNode("hollow", "empty", dmat.Ident)

	mesh, err := Flatten(scene)
	require.NoError(t, err)
	assert.Equal(t, 1, mesh.TriangleCount())
	assert.Equal(t, 1, scene.MeshNodeCount())
}

func TestFlattenEmptyScene(t *testing.T) {
	scene := NewScene()
	scene.AddNode("light", "", dmat.Ident)
	_, err := Flatten(scene)
	assert.ErrorIs(t, err, ErrEmptyScene)

	_, err = Flatten(nil)
	assert.ErrorIs(t, err, ErrEmptyScene)
}

func TestFlattenUnknownGeometry(t *testing.T) {
	scene := NewScene()
	scene.AddNode("dangling", "nowhere", dmat.Ident)
	_, err := Flatten(scene)
	assert.ErrorIs(t, err, ErrLoad)
}

func TestFlattenMirrorKeepsOutwardWinding(t *testing.T) {
	scene := NewScene()
	scene.Geometry["cube"] = unitCube()
	mirror := dmat.Ident
	mirror[0][0] = -1
	scene.AddNode("mirrored", "cube", mirror)

	mesh, err := Flatten(scene)
	require.NoError(t, err)
	volume, _, method := massProperties(mesh.Weld())
	assert.Equal(t, CentroidVolume, method)
	assert.InDelta(t, 1.0, volume, 1e-9)

	var signed float64
	for _, f := range mesh.Faces {
		a, b, c := &mesh.Vertices[f[0]], &mesh.Vertices[f[1]], &mesh.Vertices[f[2]]
		bc := vec3d.Cross(b, c)
		signed += vec3d.Dot(a, &bc) / 6
	}
	assert.Greater(t, signed, 0.0)
}
