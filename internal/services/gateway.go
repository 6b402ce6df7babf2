package services

import (
	"context"

	"github.com/whistlebox/backend/internal/xrpl"
)

// LedgerGateway submits escrow operations to the value-transfer network and
// reports the engine outcome. Both calls block for the ledger confirmation
// round trip (seconds); the lifecycle manager bounds them with a deadline
// and never holds locks across them. xrpl.Client is the production
// implementation.
type LedgerGateway interface {
	CreateEscrow(ctx context.Context, p xrpl.EscrowCreateParams) (*xrpl.EscrowCreateResult, error)
	FinishEscrow(ctx context.Context, p xrpl.EscrowFinishParams) (*xrpl.EscrowFinishResult, error)
}
