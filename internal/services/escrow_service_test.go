package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/config"
	"github.com/whistlebox/backend/internal/events"
	"github.com/whistlebox/backend/internal/models"
	"github.com/whistlebox/backend/internal/storage/memory"
	"github.com/whistlebox/backend/internal/xrpl"
)

const (
	custodyAddress    = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	journalistAddress = "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"
	verifierAddress   = "rrrrrrrrrrrrrrrrrrrrBZbvji"
)

// fakeGateway counts submissions and answers with a scripted outcome, so
// tests can assert exactly how many ledger calls a scenario makes.
type fakeGateway struct {
	mu            sync.Mutex
	createCalls   atomic.Int64
	finishCalls   atomic.Int64
	createResult  xrpl.EngineResult
	finishResult  xrpl.EngineResult
	createErr     error
	finishErr     error
	nextOfferSeq  uint32
	beforeCreate  func() // runs inside CreateEscrow, before returning
	beforeFinish  func()
	lastFinishSeq uint32
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		createResult: xrpl.ResultSuccess,
		finishResult: xrpl.ResultSuccess,
		nextOfferSeq: 100,
	}
}

func (f *fakeGateway) CreateEscrow(_ context.Context, p xrpl.EscrowCreateParams) (*xrpl.EscrowCreateResult, error) {
	n := f.createCalls.Add(1)
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	seq := f.nextOfferSeq
	f.nextOfferSeq++
	f.mu.Unlock()
	return &xrpl.EscrowCreateResult{
		TxHash:        "CREATE" + p.Destination + string(rune('A'+n%26)),
		EngineResult:  f.createResult,
		OfferSequence: seq,
		LedgerIndex:   1000 + int64(seq),
	}, nil
}

func (f *fakeGateway) FinishEscrow(_ context.Context, p xrpl.EscrowFinishParams) (*xrpl.EscrowFinishResult, error) {
	f.finishCalls.Add(1)
	if f.beforeFinish != nil {
		f.beforeFinish()
	}
	f.mu.Lock()
	f.lastFinishSeq = p.OfferSequence
	f.mu.Unlock()
	if f.finishErr != nil {
		return nil, f.finishErr
	}
	return &xrpl.EscrowFinishResult{TxHash: "FINISHTX", EngineResult: f.finishResult}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		CustodyWalletSeed:       "sn259rEFXrQrWyx3Q7XneWcwV6dfL",
		CustodyWalletAddress:    custodyAddress,
		VerifierWalletSeed:      "sn259rEFXrQrWyx3Q7XneWcwV6dfL",
		VerifierWalletAddress:   verifierAddress,
		JournalistWalletAddress: journalistAddress,
		XRPLSubmitTimeout:       5 * time.Second,
		EscrowFinishAfter:       time.Hour,
		ReleaseRequestLease:     5 * time.Minute,
	}
}

type fixture struct {
	store    *memory.Store
	gateway  *fakeGateway
	service  *EscrowService
	campaign *models.Campaign
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	gateway := newFakeGateway()
	cfg := testConfig()
	svc := NewEscrowService(store, gateway, events.NopPublisher{}, cfg, zap.NewNop())

	campaign := &models.Campaign{
		ID:                "cityhall-001",
		Title:             "City Hall",
		JournalistAddress: journalistAddress,
		VerifierAddress:   verifierAddress,
		Status:            models.CampaignStatusActive,
	}
	require.NoError(t, store.CreateCampaign(context.Background(), campaign))

	return &fixture{store: store, gateway: gateway, service: svc, campaign: campaign}
}

func (f *fixture) donate(t *testing.T, ref string) *CreateDonationResult {
	t.Helper()
	res, err := f.service.CreateDonation(context.Background(), f.campaign.ID, decimal.NewFromInt(25), ref)
	require.NoError(t, err)
	return res
}

// lockedEscrow creates a donation and rewinds the escrow's unlock time so
// release tests do not wait.
func (f *fixture) lockedEscrow(t *testing.T, ref string) *models.Escrow {
	t.Helper()
	res := f.donate(t, ref)
	f.store.SetEscrowFinishAfter(res.Escrow.ID, time.Now().Add(-time.Minute))
	escrow, err := f.store.GetEscrow(context.Background(), res.Escrow.ID)
	require.NoError(t, err)
	return escrow
}

func TestCreateDonationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.donate(t, "pay-001")
	require.NotNil(t, res.Escrow)
	assert.False(t, res.Duplicate)
	assert.Equal(t, models.DonationStatusEscrowed, res.Donation.Status)
	assert.Equal(t, models.EscrowStatusLocked, res.Escrow.Status)
	assert.Equal(t, journalistAddress, res.Escrow.DestinationAddress)
	assert.Equal(t, custodyAddress, res.Escrow.OwnerAddress)
	require.NotNil(t, res.Escrow.OfferSequence)

	campaign, err := f.store.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.True(t, campaign.TotalRaisedXRP.Equal(decimal.NewFromInt(25)))
	assert.True(t, campaign.TotalLockedXRP.Equal(decimal.NewFromInt(25)))
	assert.True(t, campaign.TotalReleasedXRP.IsZero())
	assert.Equal(t, 1, campaign.EscrowCount)
	assert.True(t, campaign.CheckCounters())
}

func TestCreateDonationValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateDonation(ctx, f.campaign.ID, decimal.Zero, "pay-001")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.service.CreateDonation(ctx, f.campaign.ID, decimal.NewFromInt(-5), "pay-001")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.service.CreateDonation(ctx, f.campaign.ID, decimal.NewFromInt(5), "   ")
	assert.ErrorIs(t, err, ErrMissingPaymentRef)

	_, err = f.service.CreateDonation(ctx, "no-such-campaign", decimal.NewFromInt(5), "pay-001")
	assert.ErrorIs(t, err, ErrCampaignNotFound)

	assert.EqualValues(t, 0, f.gateway.createCalls.Load(), "validation failures must not reach the ledger")
}

func TestCreateDonationDuplicateRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.donate(t, "pay-dup")
	second, err := f.service.CreateDonation(ctx, f.campaign.ID, decimal.NewFromInt(25), "pay-dup")
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Donation.ID, second.Donation.ID)
	require.NotNil(t, second.Escrow)
	assert.Equal(t, first.Escrow.ID, second.Escrow.ID)
	assert.EqualValues(t, 1, f.gateway.createCalls.Load(), "duplicate ref must not submit again")

	campaign, err := f.store.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.True(t, campaign.TotalRaisedXRP.Equal(decimal.NewFromInt(25)), "counters must move once")
}

func TestCreateDonationConcurrentSameRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*CreateDonationResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.CreateDonation(ctx, f.campaign.ID, decimal.NewFromInt(10), "pay-race")
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, f.gateway.createCalls.Load(), "exactly one ledger submission per ref")

	winners := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			// A loser that read between the winner's failure-cleanup cannot
			// happen here (the winner succeeds), so errors are unexpected.
			t.Errorf("worker %d: %v", i, errs[i])
			continue
		}
		if !results[i].Duplicate {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	campaign, err := f.store.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.True(t, campaign.TotalRaisedXRP.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, campaign.EscrowCount)
}

func TestCreateDonationEngineRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.createResult = xrpl.EngineResult("tecUNFUNDED")

	_, err := f.service.CreateDonation(ctx, f.campaign.ID, decimal.NewFromInt(25), "pay-rej")
	var rej *LedgerRejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "EscrowCreate", rej.Op)

	// No donation or escrow rows survive, counters untouched, ref retryable.
	_, err = f.store.GetDonationByPaymentRef(ctx, "pay-rej")
	assert.Error(t, err)
	campaign, err := f.store.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.True(t, campaign.TotalRaisedXRP.IsZero())
	assert.Equal(t, 0, campaign.EscrowCount)

	f.gateway.createResult = xrpl.ResultSuccess
	res, err := f.service.CreateDonation(ctx, f.campaign.ID, decimal.NewFromInt(25), "pay-rej")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.EqualValues(t, 2, f.gateway.createCalls.Load())
}

func TestCreateDonationTransportFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.createErr = errors.New("dial tcp: connection refused")

	_, err := f.service.CreateDonation(ctx, f.campaign.ID, decimal.NewFromInt(25), "pay-down")
	var unavailable *LedgerUnavailableError
	require.ErrorAs(t, err, &unavailable)

	// Reservation released; the same ref succeeds once the ledger is back.
	f.gateway.createErr = nil
	res, err := f.service.CreateDonation(ctx, f.campaign.ID, decimal.NewFromInt(25), "pay-down")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
}

func TestCreateDonationFallbackDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bare := &models.Campaign{ID: "no-journalist", Title: "No Journalist", Status: models.CampaignStatusActive}
	require.NoError(t, f.store.CreateCampaign(ctx, bare))

	res, err := f.service.CreateDonation(ctx, bare.ID, decimal.NewFromInt(5), "pay-fb")
	require.NoError(t, err)
	assert.Equal(t, journalistAddress, res.Escrow.DestinationAddress)
}

func TestCreateDonationNoDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.service.cfg.JournalistWalletAddress = ""

	bare := &models.Campaign{ID: "no-dest", Title: "No Destination", Status: models.CampaignStatusActive}
	require.NoError(t, f.store.CreateCampaign(ctx, bare))

	_, err := f.service.CreateDonation(ctx, bare.ID, decimal.NewFromInt(5), "pay-nd")
	assert.ErrorIs(t, err, ErrInvalidDestination)
	assert.EqualValues(t, 0, f.gateway.createCalls.Load())
}

func TestReleaseEscrowHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow := f.lockedEscrow(t, "pay-rel")

	res, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", verifierAddress)
	require.NoError(t, err)
	assert.False(t, res.AlreadyReleased)
	assert.Equal(t, "FINISHTX", res.FinishTxHash)
	assert.Equal(t, models.EscrowStatusReleased, res.Escrow.Status)
	assert.EqualValues(t, *escrow.OfferSequence, f.gateway.lastFinishSeq)

	campaign, err := f.store.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.True(t, campaign.TotalLockedXRP.IsZero())
	assert.True(t, campaign.TotalReleasedXRP.Equal(decimal.NewFromInt(25)))
	assert.True(t, campaign.CheckCounters())
}

func TestReleaseEscrowIdempotentRequestID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow := f.lockedEscrow(t, "pay-idem")

	first, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", verifierAddress)
	require.NoError(t, err)

	second, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", verifierAddress)
	require.NoError(t, err)
	assert.True(t, second.AlreadyReleased)
	assert.Equal(t, first.FinishTxHash, second.FinishTxHash)
	assert.EqualValues(t, 1, f.gateway.finishCalls.Load(), "replay must not touch the ledger")
}

func TestReleaseEscrowTerminalStateShortCircuit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow := f.lockedEscrow(t, "pay-term")

	_, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", verifierAddress)
	require.NoError(t, err)

	// A brand new request id against a released escrow replays the stored
	// outcome without a ledger call.
	res, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-2", verifierAddress)
	require.NoError(t, err)
	assert.True(t, res.AlreadyReleased)
	assert.Equal(t, "FINISHTX", res.FinishTxHash)
	assert.EqualValues(t, 1, f.gateway.finishCalls.Load())
}

func TestReleaseEscrowConcurrentSameRequestID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow := f.lockedEscrow(t, "pay-crace")

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*ReleaseResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.ReleaseEscrow(ctx, escrow.ID, "req-race", verifierAddress)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, f.gateway.finishCalls.Load(), "at most one finish submission per request id")

	succeeded := 0
	for i := 0; i < workers; i++ {
		switch {
		case errs[i] == nil:
			succeeded++
			assert.Equal(t, "FINISHTX", results[i].FinishTxHash)
		case errors.Is(errs[i], ErrReleaseInProgress):
		default:
			t.Errorf("worker %d: unexpected error %v", i, errs[i])
		}
	}
	assert.GreaterOrEqual(t, succeeded, 1)

	campaign, err := f.store.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.True(t, campaign.TotalReleasedXRP.Equal(decimal.NewFromInt(25)), "amount released exactly once")
	assert.True(t, campaign.CheckCounters())
}

func TestReleaseEscrowUnlockGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.donate(t, "pay-gate") // FinishAfter an hour out

	_, err := f.service.ReleaseEscrow(ctx, res.Escrow.ID, "req-1", verifierAddress)
	var gate *NotYetUnlockableError
	require.ErrorAs(t, err, &gate)
	assert.Equal(t, xrpl.ResultNoPermission, gate.EngineResult())
	assert.EqualValues(t, 0, f.gateway.finishCalls.Load(), "gate fires before any ledger call")

	// Escrow stays locked and the request id is free for later use.
	escrow, err := f.store.GetEscrow(ctx, res.Escrow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusLocked, escrow.Status)

	f.store.SetEscrowFinishAfter(res.Escrow.ID, time.Now().Add(-time.Second))
	rel, err := f.service.ReleaseEscrow(ctx, res.Escrow.ID, "req-1", verifierAddress)
	require.NoError(t, err)
	assert.False(t, rel.AlreadyReleased)
}

func TestReleaseEscrowUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow := f.lockedEscrow(t, "pay-auth")

	_, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", "rrrrrrrrrrrrrrrrrrrrrhoLvTp")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.EqualValues(t, 0, f.gateway.finishCalls.Load())

	// Whitelisted addresses other than the campaign verifier are admitted.
	other := "rrrrrrrrrrrrrrrrrrrrrhoLvTp"
	require.NoError(t, f.store.AddVerifier(ctx, f.campaign.ID, other))
	res, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", other)
	require.NoError(t, err)
	assert.Equal(t, "FINISHTX", res.FinishTxHash)
}

func TestReleaseEscrowRetryableRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow := f.lockedEscrow(t, "pay-retry")
	f.gateway.finishResult = xrpl.ResultNoPermission

	_, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", verifierAddress)
	var rej *LedgerRejectionError
	require.ErrorAs(t, err, &rej)
	assert.True(t, rej.Retryable())

	// The request id is cleared, so the retry is not blocked.
	f.gateway.finishResult = xrpl.ResultSuccess
	res, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", verifierAddress)
	require.NoError(t, err)
	assert.False(t, res.AlreadyReleased)
	assert.EqualValues(t, 2, f.gateway.finishCalls.Load())
}

func TestReleaseEscrowNoTargetAfterConcurrentFinish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow := f.lockedEscrow(t, "pay-target")

	// Simulate a finish that raced us on the ledger: while our submission is
	// in flight another process releases the escrow, and the engine answers
	// tecNO_TARGET because the escrow object is gone.
	finishTx := "EXTERNALTX"
	f.gateway.finishResult = xrpl.ResultNoTarget
	f.gateway.beforeFinish = func() {
		_, _, err := f.store.BeginReleaseRequest(ctx, "req-other", escrow.ID, time.Minute)
		require.NoError(t, err)
		require.NoError(t, f.store.MarkEscrowReleased(ctx, escrow.ID, "req-other", finishTx))
	}
	res, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-mine", verifierAddress)
	require.NoError(t, err)
	assert.True(t, res.AlreadyReleased)
	assert.Equal(t, finishTx, res.FinishTxHash)
}

func TestReleaseEscrowTransportFailureBlocksThenLeaseExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow := f.lockedEscrow(t, "pay-lease")
	f.gateway.finishErr = errors.New("read tcp: i/o timeout")

	_, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", verifierAddress)
	var unavailable *LedgerUnavailableError
	require.ErrorAs(t, err, &unavailable)

	// The id stays held while the outcome is unknown.
	f.gateway.finishErr = nil
	_, err = f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", verifierAddress)
	assert.ErrorIs(t, err, ErrReleaseInProgress)

	// Once the lease expires the id can be taken over.
	f.service.cfg.ReleaseRequestLease = time.Nanosecond
	time.Sleep(5 * time.Millisecond)
	res, err := f.service.ReleaseEscrow(ctx, escrow.ID, "req-1", verifierAddress)
	require.NoError(t, err)
	assert.Equal(t, "FINISHTX", res.FinishTxHash)
}

func TestReleaseEscrowRequestIDReuseAcrossEscrows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.lockedEscrow(t, "pay-a")
	second := f.lockedEscrow(t, "pay-b")

	_, err := f.service.ReleaseEscrow(ctx, first.ID, "req-shared", verifierAddress)
	require.NoError(t, err)

	_, err = f.service.ReleaseEscrow(ctx, second.ID, "req-shared", verifierAddress)
	assert.ErrorIs(t, err, ErrReleaseRequestMismatch)
}

func TestReleaseEscrowValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.ReleaseEscrow(ctx, "escrow-0001", "  ", verifierAddress)
	assert.ErrorIs(t, err, ErrMissingRequestID)

	_, err = f.service.ReleaseEscrow(ctx, "no-such-escrow", "req-1", verifierAddress)
	assert.ErrorIs(t, err, ErrEscrowNotFound)
}

func TestApproveEscrowScopedToCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow := f.lockedEscrow(t, "pay-scope")

	other := &models.Campaign{ID: "other-001", Title: "Other", VerifierAddress: verifierAddress, Status: models.CampaignStatusActive}
	require.NoError(t, f.store.CreateCampaign(ctx, other))

	_, err := f.service.ApproveEscrow(ctx, other.ID, escrow.ID, "req-1", verifierAddress)
	assert.ErrorIs(t, err, ErrEscrowNotFound)

	res, err := f.service.ApproveEscrow(ctx, f.campaign.ID, escrow.ID, "req-1", verifierAddress)
	require.NoError(t, err)
	assert.Equal(t, "FINISHTX", res.FinishTxHash)
}

func TestCountersHoldAcrossLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	refs := []string{"pay-c1", "pay-c2", "pay-c3"}
	var escrows []*models.Escrow
	for _, ref := range refs {
		escrows = append(escrows, f.lockedEscrow(t, ref))
	}

	_, err := f.service.ReleaseEscrow(ctx, escrows[0].ID, "req-c1", verifierAddress)
	require.NoError(t, err)
	_, err = f.service.ReleaseEscrow(ctx, escrows[1].ID, "req-c2", verifierAddress)
	require.NoError(t, err)

	campaign, err := f.store.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.True(t, campaign.TotalRaisedXRP.Equal(decimal.NewFromInt(75)))
	assert.True(t, campaign.TotalLockedXRP.Equal(decimal.NewFromInt(25)))
	assert.True(t, campaign.TotalReleasedXRP.Equal(decimal.NewFromInt(50)))
	assert.True(t, campaign.CheckCounters())
}
