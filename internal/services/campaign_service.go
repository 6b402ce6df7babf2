package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/config"
	"github.com/whistlebox/backend/internal/models"
	"github.com/whistlebox/backend/internal/storage"
	"github.com/whistlebox/backend/internal/xrpl"
)

var (
	ErrMissingTitle      = errors.New("campaign title is required")
	ErrCampaignExists    = errors.New("campaign with this id already exists")
	ErrInvalidJournalist = errors.New("journalist address is not a valid XRPL classic address")
)

type CampaignService struct {
	store storage.Store
	cfg   *config.Config
	log   *zap.Logger
}

func NewCampaignService(store storage.Store, cfg *config.Config, log *zap.Logger) *CampaignService {
	return &CampaignService{store: store, cfg: cfg, log: log}
}

// Create registers a campaign. The id is a caller-chosen slug (it appears in
// donation URLs); a random one is assigned when omitted. Wallet addresses are
// optional at creation but must be well-formed when present.
func (s *CampaignService) Create(ctx context.Context, c *models.Campaign) (*models.Campaign, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return nil, ErrMissingTitle
	}
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.JournalistAddress != "" && !xrpl.IsValidClassicAddress(c.JournalistAddress) {
		return nil, ErrInvalidJournalist
	}
	if c.VerifierAddress != "" && !xrpl.IsValidClassicAddress(c.VerifierAddress) {
		return nil, ErrInvalidVerifierAddress
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusActive
	}

	if err := s.store.CreateCampaign(ctx, c); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrCampaignExists
		}
		return nil, err
	}

	s.log.Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("title", c.Title),
	)
	return c, nil
}

func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	campaign, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return campaign, nil
}

func (s *CampaignService) List(ctx context.Context) ([]models.Campaign, error) {
	return s.store.ListCampaigns(ctx)
}

// Summary returns the public donor view: counters plus per-escrow amount and
// state, no donor identities.
func (s *CampaignService) Summary(ctx context.Context, id string) (*models.CampaignSummary, error) {
	summary, err := s.store.GetCampaignSummary(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return summary, nil
}

// Seed creates the default campaign on an empty store so a fresh deployment
// is usable without a manual create call.
func (s *CampaignService) Seed(ctx context.Context) error {
	existing, err := s.store.ListCampaigns(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	campaign := &models.Campaign{
		ID:                "cityhall-001",
		Title:             "City Hall Procurement Investigation",
		Description:       "Fund the journalist investigating procurement irregularities at city hall. Donations are held in escrow until the verifier confirms publication.",
		JournalistAddress: s.cfg.JournalistWalletAddress,
		VerifierAddress:   s.cfg.VerifierWalletAddress,
		Status:            models.CampaignStatusActive,
	}
	if err := s.store.CreateCampaign(ctx, campaign); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil
		}
		return err
	}
	s.log.Info("seeded default campaign", zap.String("campaign_id", campaign.ID))
	return nil
}
