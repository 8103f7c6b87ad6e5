package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Billing event channels.
const (
	ChannelPlanChanged  = "billing.plan_changed"
	ChannelTrialExpired = "billing.trial_expired"
	ChannelPeriodRolled = "billing.period_rolled"
)

// BillingEvent is the payload published on every ledger transition.
type BillingEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	Plan      string    `json:"plan,omitempty"`
	Reference string    `json:"reference,omitempty"`
	At        time.Time `json:"at"`
}

// NopBroker discards everything. Used when no broker is configured and in
// tests that do not care about events.
type NopBroker struct{}

func (NopBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return nil
}

func (NopBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (NopBroker) Close() error { return nil }
