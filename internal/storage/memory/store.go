// Package memory implements storage.Store with mutex-guarded maps. It backs
// local development without Postgres and the concurrency tests; semantics
// match the Postgres store, including insert-or-ignore on both idempotency
// keys and all-or-nothing multi-row mutations (one mutex hold each).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/whistlebox/backend/internal/models"
	"github.com/whistlebox/backend/internal/storage"
)

type Store struct {
	mu sync.Mutex

	campaigns map[string]*models.Campaign
	donations map[string]*models.Donation
	escrows   map[string]*models.Escrow
	releases  map[string]*models.ReleaseRequest
	whitelist map[string]time.Time // campaignID + "\x00" + address -> added at
	audit     []models.AuditEntry

	donationSeq int
	escrowSeq   int
	auditSeq    int64
}

func New() *Store {
	return &Store{
		campaigns: make(map[string]*models.Campaign),
		donations: make(map[string]*models.Donation),
		escrows:   make(map[string]*models.Escrow),
		releases:  make(map[string]*models.ReleaseRequest),
		whitelist: make(map[string]time.Time),
	}
}

var _ storage.Store = (*Store)(nil)

func wlKey(campaignID, address string) string {
	return campaignID + "\x00" + address
}

// --- Campaigns ---

func (s *Store) CreateCampaign(_ context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[c.ID]; exists {
		return storage.ErrConflict
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *Store) GetCampaign(_ context.Context, id string) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCampaignLocked(id)
}

func (s *Store) getCampaignLocked(id string) (*models.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListCampaigns(_ context.Context) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetCampaignSummary(_ context.Context, id string) (*models.CampaignSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getCampaignLocked(id)
	if err != nil {
		return nil, err
	}
	summary := &models.CampaignSummary{Campaign: *c}
	for _, e := range s.escrows {
		if e.CampaignID == id {
			summary.Escrows = append(summary.Escrows, models.EscrowSummaryEntry{
				ID: e.ID, AmountXRP: e.AmountXRP, Status: e.Status,
			})
		}
	}
	sort.Slice(summary.Escrows, func(i, j int) bool { return summary.Escrows[i].ID < summary.Escrows[j].ID })
	return summary, nil
}

// --- Donations ---

func (s *Store) InsertPendingDonation(_ context.Context, d *models.Donation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.donations {
		if existing.PaymentRef == d.PaymentRef {
			return false, nil
		}
	}

	s.donationSeq++
	d.ID = fmt.Sprintf("donation-%04d", s.donationSeq)
	d.Status = models.DonationStatusReceived
	d.EscrowID = nil
	d.CreatedAt = time.Now().UTC()
	cp := *d
	s.donations[d.ID] = &cp
	return true, nil
}

func (s *Store) GetDonationByPaymentRef(_ context.Context, ref string) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.donations {
		if d.PaymentRef == ref {
			cp := *d
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) DeletePendingDonation(_ context.Context, donationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.donations[donationID]; ok && d.Status == models.DonationStatusReceived {
		delete(s.donations, donationID)
	}
	return nil
}

func (s *Store) FinalizeDonation(_ context.Context, donationID string, e *models.Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.donations[donationID]
	if !ok || d.Status != models.DonationStatusReceived {
		return storage.ErrNotFound
	}
	c, ok := s.campaigns[e.CampaignID]
	if !ok {
		return storage.ErrNotFound
	}

	s.escrowSeq++
	e.ID = fmt.Sprintf("escrow-%04d", s.escrowSeq)
	e.DonationID = donationID
	e.Status = models.EscrowStatusLocked
	e.CreatedAt = time.Now().UTC()
	cp := *e
	s.escrows[e.ID] = &cp

	escrowID := e.ID
	d.EscrowID = &escrowID
	d.Status = models.DonationStatusEscrowed

	c.TotalRaisedXRP = c.TotalRaisedXRP.Add(e.AmountXRP)
	c.TotalLockedXRP = c.TotalLockedXRP.Add(e.AmountXRP)
	c.EscrowCount++
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Escrows ---

func (s *Store) GetEscrow(_ context.Context, id string) (*models.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.escrows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) GetCampaignEscrow(ctx context.Context, campaignID, escrowID string) (*models.Escrow, error) {
	e, err := s.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if e.CampaignID != campaignID {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEscrows(_ context.Context) ([]models.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Escrow, 0, len(s.escrows))
	for _, e := range s.escrows {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetEscrowFinishAfter rewrites an escrow's unlock time. Test hook: release
// tests use it to move the unlock gate instead of sleeping through it.
func (s *Store) SetEscrowFinishAfter(escrowID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.escrows[escrowID]; ok {
		e.FinishAfter = t
	}
}

func (s *Store) MarkEscrowReleased(_ context.Context, escrowID, requestID, finishTxHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.escrows[escrowID]
	if !ok {
		return storage.ErrNotFound
	}
	if e.Status != models.EscrowStatusLocked {
		return storage.ErrConflict
	}
	c, ok := s.campaigns[e.CampaignID]
	if !ok {
		return storage.ErrNotFound
	}

	hash := finishTxHash
	e.Status = models.EscrowStatusReleased
	e.FinishTxHash = &hash

	if r, ok := s.releases[requestID]; ok {
		r.Status = models.ReleaseStatusCompleted
		r.FinishTxHash = &hash
		r.UpdatedAt = time.Now().UTC()
	}

	c.TotalLockedXRP = c.TotalLockedXRP.Sub(e.AmountXRP)
	c.TotalReleasedXRP = c.TotalReleasedXRP.Add(e.AmountXRP)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Release requests ---

func (s *Store) BeginReleaseRequest(_ context.Context, requestID, escrowID string, lease time.Duration) (bool, *models.ReleaseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.releases[requestID]; ok {
		stale := existing.Status == models.ReleaseStatusInProgress &&
			lease > 0 && now.Sub(existing.UpdatedAt) > lease
		if !stale {
			cp := *existing
			return false, &cp, nil
		}
		// Lease expired: take the attempt over.
	}

	s.releases[requestID] = &models.ReleaseRequest{
		RequestID: requestID,
		EscrowID:  escrowID,
		Status:    models.ReleaseStatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, nil, nil
}

func (s *Store) GetReleaseRequest(_ context.Context, requestID string) (*models.ReleaseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.releases[requestID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) AbortReleaseRequest(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.releases[requestID]; ok && r.Status == models.ReleaseStatusInProgress {
		delete(s.releases, requestID)
	}
	return nil
}

func (s *Store) ExpireStaleReleaseRequests(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for id, r := range s.releases {
		if r.Status == models.ReleaseStatusInProgress && now.Sub(r.UpdatedAt) > olderThan {
			delete(s.releases, id)
			n++
		}
	}
	return n, nil
}

// --- Verifier whitelist ---

func (s *Store) AddVerifier(_ context.Context, campaignID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := wlKey(campaignID, address)
	if _, exists := s.whitelist[key]; !exists {
		s.whitelist[key] = time.Now().UTC()
	}
	return nil
}

func (s *Store) RemoveVerifier(_ context.Context, campaignID, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := wlKey(campaignID, address)
	if _, exists := s.whitelist[key]; !exists {
		return false, nil
	}
	delete(s.whitelist, key)
	return true, nil
}

func (s *Store) IsVerifierWhitelisted(_ context.Context, campaignID, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.whitelist[wlKey(campaignID, address)]
	return exists, nil
}

func (s *Store) ListVerifiers(_ context.Context, campaignID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type entry struct {
		address string
		addedAt time.Time
	}
	var entries []entry
	prefix := campaignID + "\x00"
	for key, addedAt := range s.whitelist {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			entries = append(entries, entry{address: key[len(prefix):], addedAt: addedAt})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].addedAt.Equal(entries[j].addedAt) {
			return entries[i].address < entries[j].address
		}
		return entries[i].addedAt.Before(entries[j].addedAt)
	})

	addresses := make([]string, 0, len(entries))
	for _, e := range entries {
		addresses = append(addresses, e.address)
	}
	return addresses, nil
}

// --- Audit ---

func (s *Store) AppendAudit(_ context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditSeq++
	entry.ID = s.auditSeq
	entry.CreatedAt = time.Now().UTC()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListAuditByEntity(_ context.Context, entityType, entityID string, limit int) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []models.AuditEntry
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.audit[i]
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}
