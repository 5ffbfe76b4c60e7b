package codegen

import (
	"errors"
	"fmt"
)

// CompileError reports that a backend compiler rejected the lowered
// module or failed internally. Diagnostic carries the backend's own
// message unchanged.
type CompileError struct {
	Target     string
	Diagnostic string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("target %q: compilation failed: %s", e.Target, e.Diagnostic)
}

// IsCompileError reports whether err is (or wraps) a backend
// compilation failure.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
