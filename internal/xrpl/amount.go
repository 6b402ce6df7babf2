package xrpl

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// rippleEpochOffset is the number of seconds between the Unix epoch and the
// Ripple epoch (2000-01-01T00:00:00Z).
const rippleEpochOffset = 946684800

var (
	dropsPerXRP = decimal.NewFromInt(1_000_000)
	// maxXRP is the total supply; any amount above it is malformed.
	maxXRP = decimal.NewFromInt(100_000_000_000)
)

// XRPToDrops converts an XRP amount to a drops string as required by the
// transaction format. XRP has 6 decimal places; anything finer is rejected
// rather than silently rounded.
func XRPToDrops(amount decimal.Decimal) (string, error) {
	if amount.Sign() <= 0 {
		return "", fmt.Errorf("xrpl: amount must be positive, got %s", amount)
	}
	if amount.GreaterThan(maxXRP) {
		return "", fmt.Errorf("xrpl: amount %s exceeds total XRP supply", amount)
	}
	drops := amount.Mul(dropsPerXRP)
	if !drops.IsInteger() {
		return "", fmt.Errorf("xrpl: amount %s has more than 6 decimal places", amount)
	}
	return drops.String(), nil
}

// DropsToXRP converts a drops value back to XRP.
func DropsToXRP(drops int64) decimal.Decimal {
	return decimal.NewFromInt(drops).Div(dropsPerXRP)
}

// RippleTime converts t to seconds since the Ripple epoch, the unit used by
// FinishAfter and friends.
func RippleTime(t time.Time) int64 {
	return t.Unix() - rippleEpochOffset
}

// FromRippleTime converts a Ripple-epoch timestamp to a time.Time.
func FromRippleTime(rt int64) time.Time {
	return time.Unix(rt+rippleEpochOffset, 0).UTC()
}
