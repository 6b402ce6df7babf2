package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsValidEscrowTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{EscrowStatusLocked, EscrowStatusReleased, true},
		{EscrowStatusLocked, EscrowStatusFailed, true},

		// Terminal states
		{EscrowStatusReleased, EscrowStatusLocked, false},
		{EscrowStatusReleased, EscrowStatusFailed, false},
		{EscrowStatusFailed, EscrowStatusLocked, false},
		{EscrowStatusFailed, EscrowStatusReleased, false},

		// A retryable failure keeps the escrow locked; locked->locked is
		// not a transition.
		{EscrowStatusLocked, EscrowStatusLocked, false},

		{"nonexistent", EscrowStatusReleased, false},
		{EscrowStatusLocked, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidEscrowTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidEscrowTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestEscrowReleasable(t *testing.T) {
	seq := uint32(42)

	e := Escrow{OwnerAddress: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", OfferSequence: &seq}
	if !e.Releasable() {
		t.Error("escrow with owner and offer sequence should be releasable")
	}

	e = Escrow{OfferSequence: &seq}
	if e.Releasable() {
		t.Error("escrow without owner address should not be releasable")
	}

	e = Escrow{OwnerAddress: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"}
	if e.Releasable() {
		t.Error("escrow without offer sequence should not be releasable")
	}
}

func TestCampaignCheckCounters(t *testing.T) {
	c := Campaign{
		TotalRaisedXRP:   decimal.NewFromInt(100),
		TotalLockedXRP:   decimal.NewFromInt(75),
		TotalReleasedXRP: decimal.NewFromInt(25),
	}
	if !c.CheckCounters() {
		t.Error("raised 100 = locked 75 + released 25 should hold")
	}

	c.TotalReleasedXRP = decimal.NewFromInt(30)
	if c.CheckCounters() {
		t.Error("raised 100 != locked 75 + released 30")
	}
}
