package model

// Plan identifies a subscription tier.
type Plan string

const (
	PlanTrial   Plan = "Trial"
	PlanFree    Plan = "Free"
	PlanBasic   Plan = "Basic"
	PlanPremium Plan = "Premium"
)

// Purchasable reports whether the plan can be bought through checkout.
// Trial is assigned at signup and Free is entered through enrollment,
// neither goes through the payment processor.
func (p Plan) Purchasable() bool {
	return p == PlanBasic || p == PlanPremium
}

func (p Plan) String() string {
	return string(p)
}
