package runtime

import (
	"errors"
	"fmt"
)

// LoadError reports that an artifact could not be deserialized or
// loaded into a runtime instance. The underlying runtime's diagnostic
// is preserved unchanged.
type LoadError struct {
	Driver     string
	Diagnostic string
}

func (e *LoadError) Error() string {
	if e.Driver != "" {
		return fmt.Sprintf("driver %q: load failed: %s", e.Driver, e.Diagnostic)
	}
	return fmt.Sprintf("load failed: %s", e.Diagnostic)
}

// IsLoadError reports whether err is (or wraps) an artifact load
// failure.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// LookupError reports that a requested function name does not exist in
// the loaded module.
type LookupError struct {
	Function string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("module has no function %q", e.Function)
}

// IsLookupError reports whether err is (or wraps) a failed function
// name resolution.
func IsLookupError(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}
