package cadmesh

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFileNotFound       = errors.New("file not found")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrLoad               = errors.New("load failed")
	ErrBackendUnavailable = errors.New("step converter backend unavailable")
	ErrConversionFailed   = errors.New("step conversion failed")
	ErrConversionTimeout  = errors.New("step conversion timed out")
	ErrEmptyScene         = errors.New("scene has no mesh geometry")
	ErrExport             = errors.New("glb export failed")
)

// Error is the structured failure returned by every pipeline stage. Kind is
// one of the Err* sentinels above.
type Error struct {
	Kind        error
	Op          string
	Path        string
	Backend     string
	Remediation string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Backend != "" {
		fmt.Fprintf(&b, " [%s]", e.Backend)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Remediation != "" {
		b.WriteString("\n\n")
		b.WriteString(e.Remediation)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// NewConversionError classifies a backend failure. Deadline expiry becomes
// ErrConversionTimeout, everything else ErrConversionFailed.
func NewConversionError(backend, path string, cause error) *Error {
	kind := ErrConversionFailed
	if errors.Is(cause, context.DeadlineExceeded) {
		kind = ErrConversionTimeout
	}
	return &Error{Kind: kind, Op: "convert", Path: path, Backend: backend, Err: cause}
}

const stepRemediation = `STEP files need a CAD kernel to be tessellated. Either:
1. Pre-convert the STEP file to STL or OBJ (for example with FreeCAD) and upload that instead, or
2. Configure a converter backend: step.service.url (converter service), step.docker.image
   (sandboxed converter container), step.local.command (local CAD kernel) or
   step.cloudconvert.api_key (hosted conversion).`

// IsRetryable reports whether retrying the same input may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConversionTimeout)
}

// NeedsReconfiguration reports whether the failure is an environment problem
// rather than a problem with the input.
func NeedsReconfiguration(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsInputError reports whether the input file itself must be fixed.
func IsInputError(err error) bool {
	return errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrLoad) ||
		errors.Is(err, ErrEmptyScene)
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrFileNotFound, "file_not_found"},
	{ErrUnsupportedFormat, "unsupported_format"},
	{ErrLoad, "load_error"},
	{ErrBackendUnavailable, "backend_unavailable"},
	{ErrConversionFailed, "conversion_failed"},
	{ErrConversionTimeout, "conversion_timeout"},
	{ErrEmptyScene, "empty_scene"},
	{ErrExport, "export_error"},
}

// KindName returns a stable label for err's kind: "ok" for nil, "error" when
// err carries none of the sentinels.
func KindName(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "error"
}
