package billing

import (
	"errors"
	"fmt"
)

// ErrMissingAnchor is returned when a due date is requested for an
// installation whose billing configuration has no anchor date. Callers
// must surface this to the operator rather than create an undated payment.
var ErrMissingAnchor = errors.New("billing configuration has no anchor date")

// ValidationError reports a missing or invalid field for an attempted
// payment transition. It is recovered at the operation boundary and shown
// to the operator as an actionable message.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
