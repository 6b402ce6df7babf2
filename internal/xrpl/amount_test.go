package xrpl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestXRPToDrops(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    string
		wantErr bool
	}{
		{"one xrp", "1", "1000000", false},
		{"fractional", "0.5", "500000", false},
		{"smallest unit", "0.000001", "1", false},
		{"large", "100000", "100000000000", false},

		{"zero", "0", "", true},
		{"negative", "-25", "", true},
		{"sub-drop precision", "0.0000001", "", true},
		{"above supply", "100000000001", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			if err != nil {
				t.Fatalf("bad test amount %q: %v", tt.amount, err)
			}
			got, err := XRPToDrops(amount)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("XRPToDrops(%s) = %q, want error", tt.amount, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("XRPToDrops(%s): %v", tt.amount, err)
			}
			if got != tt.want {
				t.Errorf("XRPToDrops(%s) = %q, want %q", tt.amount, got, tt.want)
			}
		})
	}
}

func TestRippleTimeRoundTrip(t *testing.T) {
	// Ripple epoch itself.
	epoch := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if rt := RippleTime(epoch); rt != 0 {
		t.Errorf("RippleTime(2000-01-01) = %d, want 0", rt)
	}

	now := time.Now().Truncate(time.Second)
	if back := FromRippleTime(RippleTime(now)); !back.Equal(now) {
		t.Errorf("round trip: got %v, want %v", back, now)
	}
}
