package billing

import (
	"fmt"
	"math"
)

// ReconnectionSurcharge is the fixed fee added when service is being
// reconnected after a suspension.
const ReconnectionSurcharge = 10.00

// DiscountWarning signals that a discount exceeded the chargeable amount
// and the result was clamped at zero. It is a warning, not a failure: the
// composed amount is still usable.
type DiscountWarning struct {
	Base     float64
	Discount float64
}

func (w *DiscountWarning) Error() string {
	return fmt.Sprintf("discount %.2f exceeds chargeable amount %.2f, clamped to 0.00", w.Discount, w.Base)
}

// ComposeAmount derives a payment's charged amount:
//
//	amount = round2(base + (reconnection ? surcharge : 0) - discount)
//
// A discount larger than the chargeable amount clamps the result at zero
// and returns a DiscountWarning instead of failing silently.
// This is a PURE function.
func ComposeAmount(base float64, reconnection bool, discount float64) (float64, *DiscountWarning) {
	chargeable := base
	if reconnection {
		chargeable += ReconnectionSurcharge
	}

	amount := Round2(chargeable - discount)
	if amount < 0 {
		return 0, &DiscountWarning{Base: Round2(chargeable), Discount: Round2(discount)}
	}
	return amount, nil
}

// Round2 rounds a money amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
