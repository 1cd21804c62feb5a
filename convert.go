package cadmesh

import (
	"path/filepath"
	"strings"
)

const (
	GLB  = "glb"
	GLTF = "gltf"
	STEP = "step"
	STP  = "stp"
	STL  = "stl"
	OBJ  = "obj"
)

// SupportedFormats lists the accepted input extensions.
var SupportedFormats = []string{GLB, GLTF, STEP, STP, STL, OBJ}

// FormatReader parses one mesh file format into a single Mesh.
type FormatReader interface {
	Read(path string) (*Mesh, error)
}

// FormatFactory returns the reader for a directly parseable format. STEP has
// no reader of its own; it goes through a StepConverter first.
func FormatFactory(format string) FormatReader {
	switch format {
	case GLTF, GLB:
		return &GltfReader{}
	case OBJ:
		return &ObjReader{}
	case STL:
		return &StlReader{}
	}
	return nil
}

// FormatOf returns the lower-cased extension of path if it is supported.
func FormatOf(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, f := range SupportedFormats {
		if f == ext {
			return ext, nil
		}
	}
	return ext, &Error{
		Kind:        ErrUnsupportedFormat,
		Op:          "load",
		Path:        path,
		Remediation: "supported extensions: ." + strings.Join(SupportedFormats, ", ."),
	}
}

func isStep(format string) bool {
	return format == STEP || format == STP
}

func isGltf(format string) bool {
	return format == GLB || format == GLTF
}
