package commitment

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyRegularized is returned when Regularize is called on a payment
// that has already matured. Financial fields are never re-mutated.
var ErrAlreadyRegularized = errors.New("commitment already regularized")

// ErrNotCommitted is returned when Regularize is called on a payment that
// is not an open postponement.
var ErrNotCommitted = errors.New("payment is not an open commitment")

// OpenError rejects creating a new payment while the installation already
// has an open commitment. It identifies the existing commitment so the
// caller can steer the operator toward regularizing it instead of charging
// the cycle twice.
type OpenError struct {
	PaymentID      string
	DueDate        time.Time
	EngagementDate time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("commitment %s already open for cycle due %s (promised by %s)",
		e.PaymentID, e.DueDate.Format("2006-01-02"), e.EngagementDate.Format("2006-01-02"))
}

// IsOpen reports whether err is an OpenError.
func IsOpen(err error) bool {
	var oe *OpenError
	return errors.As(err, &oe)
}
