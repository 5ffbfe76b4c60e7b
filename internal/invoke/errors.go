package invoke

import (
	"errors"
	"fmt"
)

// ConversionError reports a tensor argument whose element type has no
// runtime array representation.
type ConversionError struct {
	DType string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("unsupported tensor element type %s", e.DType)
}

// IsConversionError reports whether err is, or wraps, a
// *ConversionError.
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}
