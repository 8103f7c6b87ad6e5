package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/service/billing"
	"github.com/contentforge/billing-api/pkg/circuitbreaker"
	apperrors "github.com/contentforge/billing-api/pkg/errors"
)

// StripeProcessor implements billing.Processor against the Stripe API.
// The client is injected at construction and shared read-only afterwards.
type StripeProcessor struct {
	sc *client.API
	cb *circuitbreaker.CircuitBreaker
}

func NewStripeProcessor(cfg config.StripeConfig) *StripeProcessor {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return newStripeProcessor(sc)
}

func newStripeProcessor(sc *client.API) *StripeProcessor {
	return &StripeProcessor{
		sc: sc,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "stripe",
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
		}),
	}
}

func (p *StripeProcessor) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*billing.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	var pi *stripe.PaymentIntent
	err := p.cb.Execute(func() error {
		var err error
		pi, err = p.sc.PaymentIntents.New(params)
		return err
	})
	if err != nil {
		return nil, mapStripeError(err)
	}
	return fromStripe(pi), nil
}

func (p *StripeProcessor) RetrieveIntent(ctx context.Context, id string) (*billing.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}

	var pi *stripe.PaymentIntent
	err := p.cb.Execute(func() error {
		var err error
		pi, err = p.sc.PaymentIntents.Get(id, params)
		return err
	})
	if err != nil {
		return nil, mapStripeError(err)
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) *billing.Intent {
	return &billing.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

// mapStripeError separates "Stripe answered with a definite no" from
// "we could not reach Stripe". Only the latter is retryable.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound {
			return apperrors.NotFound("payment intent", err)
		}
		return apperrors.BadRequest(stripeErr.Msg, err)
	}
	return apperrors.UpstreamUnavailable("payment processor", err)
}
