package events

import "context"

// Event types
const (
	EventDonationCreated = "donation_created"
	EventEscrowReleased  = "escrow_released"
)

// StreamCampaign carries all campaign-visible lifecycle events; the
// websocket hub relays it to dashboard clients.
const StreamCampaign = "events:campaign"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher discards events; used when redis is not configured
// (memory-store local runs).
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
