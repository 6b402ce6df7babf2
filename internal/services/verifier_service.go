package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/auth"
	"github.com/whistlebox/backend/internal/config"
	"github.com/whistlebox/backend/internal/models"
	"github.com/whistlebox/backend/internal/storage"
	"github.com/whistlebox/backend/internal/xrpl"
)

var (
	ErrInvalidVerifierAddress = errors.New("verifier address is not a valid XRPL classic address")
	ErrVerifierNotFound       = errors.New("verifier is not on the campaign whitelist")
	ErrBadLogin               = errors.New("invalid verifier credentials")
)

// VerifierService manages per-campaign verifier whitelists and the shared
// token login that verifiers exchange for a JWT.
type VerifierService struct {
	store storage.Store
	cfg   *config.Config
	log   *zap.Logger
}

func NewVerifierService(store storage.Store, cfg *config.Config, log *zap.Logger) *VerifierService {
	return &VerifierService{store: store, cfg: cfg, log: log}
}

// Login exchanges the shared verifier API token and the verifier's wallet
// address for a JWT carrying that address. Authorization against a concrete
// campaign happens later, per release call.
func (v *VerifierService) Login(ctx context.Context, apiToken, address string) (string, error) {
	if v.cfg.VerifierAPIToken == "" {
		return "", ErrBadLogin
	}
	if subtle.ConstantTimeCompare([]byte(apiToken), []byte(v.cfg.VerifierAPIToken)) != 1 {
		v.log.Warn("verifier login rejected: bad token", zap.String("address", address))
		return "", ErrBadLogin
	}
	if !xrpl.IsValidClassicAddress(address) {
		return "", ErrInvalidVerifierAddress
	}

	token, err := auth.GenerateJWT(v.cfg.JWTSecret, address, v.cfg.JWTExpiration)
	if err != nil {
		return "", err
	}
	v.log.Info("verifier logged in", zap.String("address", address))
	return token, nil
}

func (v *VerifierService) Add(ctx context.Context, campaignID, address, actor string) error {
	address = strings.TrimSpace(address)
	if !xrpl.IsValidClassicAddress(address) {
		return ErrInvalidVerifierAddress
	}
	if _, err := v.store.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCampaignNotFound
		}
		return err
	}

	if err := v.store.AddVerifier(ctx, campaignID, address); err != nil {
		return err
	}
	v.audit(ctx, actor, "verifier_added", campaignID, address)
	return nil
}

func (v *VerifierService) Remove(ctx context.Context, campaignID, address, actor string) error {
	removed, err := v.store.RemoveVerifier(ctx, campaignID, strings.TrimSpace(address))
	if err != nil {
		return err
	}
	if !removed {
		return ErrVerifierNotFound
	}
	v.audit(ctx, actor, "verifier_removed", campaignID, address)
	return nil
}

// Check reports whitelist membership. The campaign's configured verifier
// counts as authorized even when not explicitly whitelisted, matching the
// release path's authorization rule.
func (v *VerifierService) Check(ctx context.Context, campaignID, address string) (bool, error) {
	campaign, err := v.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, ErrCampaignNotFound
		}
		return false, err
	}
	if address == "" {
		return false, nil
	}
	if campaign.VerifierAddress == address {
		return true, nil
	}
	return v.store.IsVerifierWhitelisted(ctx, campaignID, address)
}

func (v *VerifierService) List(ctx context.Context, campaignID string) ([]string, error) {
	if _, err := v.store.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return v.store.ListVerifiers(ctx, campaignID)
}

func (v *VerifierService) audit(ctx context.Context, actor, action, campaignID, address string) {
	err := v.store.AppendAudit(ctx, models.AuditEntry{
		Actor:      actor,
		Action:     action,
		EntityType: "campaign",
		EntityID:   campaignID,
		Meta:       map[string]any{"verifier_address": address},
	})
	if err != nil {
		v.log.Error("failed to append audit entry", zap.String("action", action), zap.Error(err))
	}
}
