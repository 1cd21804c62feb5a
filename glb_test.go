package cadmesh

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_WritesBinaryContainer(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "cube.glb")

	got, err := Export(unitCube(), out)
	require.NoError(t, err)
	assert.Equal(t, out, got)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Greater(t, len(raw), 12)
	assert.Equal(t, "glTF", string(raw[:4]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(raw[4:8]))
	assert.Equal(t, uint32(len(raw)), binary.LittleEndian.Uint32(raw[8:12]))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file left behind")
	assert.Equal(t, "cube.glb", entries[0].Name())
}

func TestExport_RoundTrip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cube.glb")
	_, err := Export(unitCube(), out)
	require.NoError(t, err)

	mesh, err := NewGltfReader().Read(out)
	require.NoError(t, err)
	assert.Equal(t, 8, mesh.VertexCount())
	assert.Equal(t, 12, mesh.TriangleCount())
	box, ok := mesh.Bounds()
	require.True(t, ok)
	assert.Equal(t, [3]float64{0, 0, 0}, [3]float64(box.Min))
	assert.Equal(t, [3]float64{1, 1, 1}, [3]float64(box.Max))
}

func TestBuildDocument_IndexWidth(t *testing.T) {
	indexType := func(doc *gltf.Document) gltf.ComponentType {
		prim := doc.Meshes[0].Primitives[0]
		require.NotNil(t, prim.Indices)
		return doc.Accessors[*prim.Indices].ComponentType
	}

	small, err := BuildDocument(unitCube())
	require.NoError(t, err)
	assert.Equal(t, gltf.ComponentUshort, indexType(small))
	assert.Equal(t, generator, small.Asset.Generator)
	assert.Contains(t, small.Meshes[0].Primitives[0].Attributes, gltf.NORMAL)

	big := grid(256)
	require.Greater(t, big.VertexCount(), 65535)
	large, err := BuildDocument(big)
	require.NoError(t, err)
	assert.Equal(t, gltf.ComponentUint, indexType(large))
}

func TestBuildDocument_DoesNotMutateInput(t *testing.T) {
	m := unitCube()
	_, err := BuildDocument(m)
	require.NoError(t, err)
	assert.Empty(t, m.Normals)
}

func TestExport_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Export(NewMesh(), filepath.Join(dir, "empty.glb"))
	assert.ErrorIs(t, err, ErrExport)
	assert.NoFileExists(t, filepath.Join(dir, "empty.glb"))

	bad := &Mesh{Vertices: unitCube().Vertices, Faces: [][3]uint32{{0, 1, 99}}}
	_, err = Export(bad, filepath.Join(dir, "bad.glb"))
	assert.ErrorIs(t, err, ErrExport)

	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	_, err = Export(unitCube(), filepath.Join(blocker, "out.glb"))
	assert.ErrorIs(t, err, ErrExport)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scene.glb")
	triangleScene(t, src)

	dst := filepath.Join(dir, "out", "copy.glb")
	got, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, dst, got)

	want, err := os.ReadFile(src)
	require.NoError(t, err)
	have, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, want, have)

	_, err = CopyFile(filepath.Join(dir, "missing.glb"), dst)
	assert.ErrorIs(t, err, ErrFileNotFound)
}
