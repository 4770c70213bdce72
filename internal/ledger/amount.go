package ledger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ToSmallestUnit converts a display amount (e.g. 5220.9 SCRT) into the
// ledger's smallest unit given the denom's decimal places. Fractional
// remainders below one smallest unit are truncated, not rounded: lossy but
// deterministic, and it never submits more than the user entered.
func ToSmallestUnit(display float64, decimals int) (uint64, error) {
	if math.IsNaN(display) || math.IsInf(display, 0) {
		return 0, fmt.Errorf("amount is not a finite number")
	}
	if display < 0 {
		return 0, fmt.Errorf("amount must not be negative: %v", display)
	}
	if decimals < 0 {
		return 0, fmt.Errorf("denom decimals must not be negative: %d", decimals)
	}
	d := decimal.NewFromFloat(display).Shift(int32(decimals)).Truncate(0)
	if !d.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %v overflows the smallest unit range", display)
	}
	return d.BigInt().Uint64(), nil
}

// ParseSmallestUnit converts a user-entered decimal string the same way.
func ParseSmallestUnit(display string, decimals int) (uint64, error) {
	d, err := decimal.NewFromString(display)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", display, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", display)
	}
	d = d.Shift(int32(decimals)).Truncate(0)
	if !d.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %s overflows the smallest unit range", display)
	}
	return d.BigInt().Uint64(), nil
}

// FromSmallestUnit renders a smallest-unit integer as a display string.
// Presentation only; never feed the result back into a transaction.
func FromSmallestUnit(amount uint64, decimals int) string {
	return decimal.NewFromUint64(amount).Shift(int32(-decimals)).String()
}
