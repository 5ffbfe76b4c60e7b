package lower

import (
	"errors"
	"fmt"
)

// LoweringError reports a rejected lowering run. Diagnostic preserves
// the pass infrastructure's own message unchanged; Pass names the
// failing pass when one was reached.
type LoweringError struct {
	Pass       string
	Diagnostic string
}

func (e *LoweringError) Error() string {
	if e.Pass != "" {
		return fmt.Sprintf("lowering failed in pass %q: %s", e.Pass, e.Diagnostic)
	}
	return fmt.Sprintf("lowering failed: %s", e.Diagnostic)
}

// IsLoweringError reports whether err is (or wraps) a lowering
// failure.
func IsLoweringError(err error) bool {
	var le *LoweringError
	return errors.As(err, &le)
}
