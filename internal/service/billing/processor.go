package billing

import "context"

// Intent metadata keys. Set at checkout, read back on verification; the
// processor's copy is authoritative, client-supplied values are never
// trusted.
const (
	MetaAccountID = "account_id"
	MetaEmail     = "account_email"
	MetaPlan      = "subscription_plan"
)

// Intent statuses as the processor reports them.
const (
	IntentStatusSucceeded             = "succeeded"
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
)

// Intent is one payment attempt as known to the processor.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Currency     string
	Metadata     map[string]string
}

// Processor abstracts the payment provider. The production implementation
// lives in internal/payment; tests substitute a fake.
type Processor interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}
