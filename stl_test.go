package cadmesh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hschendel/stl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStlReader_Read(t *testing.T) {
	path := cubeSTL(t)

	mesh, err := NewStlReader().Read(path)
	require.NoError(t, err)
	assert.Equal(t, 12, mesh.TriangleCount())
	assert.Equal(t, 36, mesh.VertexCount(), "STL is read as a triangle soup")

	box, ok := mesh.Bounds()
	require.True(t, ok)
	assert.Equal(t, [3]float64{0, 0, 0}, [3]float64(box.Min))
	assert.Equal(t, [3]float64{1, 1, 1}, [3]float64(box.Max))
}

func TestStlReader_ASCII(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.stl")
	solid := &stl.Solid{
		Name:    "tri",
		IsAscii: true,
		Triangles: []stl.Triangle{{
			Normal:   stl.Vec3{0, 0, 1},
			Vertices: [3]stl.Vec3{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}},
		}},
	}
	require.NoError(t, solid.WriteFile(path))

	mesh, err := NewStlReader().Read(path)
	require.NoError(t, err)
	assert.Equal(t, 1, mesh.TriangleCount())
}

func TestStlReader_Errors(t *testing.T) {
	_, err := NewStlReader().Read(filepath.Join(t.TempDir(), "missing.stl"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	garbage := filepath.Join(t.TempDir(), "garbage.stl")
	require.NoError(t, os.WriteFile(garbage, []byte("solid nope\n  this is not stl\n"), 0o644))
	_, err = NewStlReader().Read(garbage)
	assert.ErrorIs(t, err, ErrLoad)
	assert.True(t, IsInputError(err))
}
