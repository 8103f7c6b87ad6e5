package plan

import (
	"fmt"

	"github.com/contentforge/billing-api/internal/model"
)

// Terms are the billing terms of one plan for one billing period.
type Terms struct {
	QuotaLimit int
	PriceCents int64
}

// Catalog maps plan identifiers to their terms. Built once at startup and
// never mutated, so concurrent reads need no synchronization.
type Catalog struct {
	terms map[model.Plan]Terms
}

// Default returns the catalog with the standard tiers.
func Default() *Catalog {
	return &Catalog{
		terms: map[model.Plan]Terms{
			model.PlanFree:    {QuotaLimit: 5, PriceCents: 0},
			model.PlanBasic:   {QuotaLimit: 50, PriceCents: 2000},
			model.PlanPremium: {QuotaLimit: 100, PriceCents: 5000},
		},
	}
}

// TermsFor looks up the terms for a plan. An unknown plan is a programmer
// error, not user input: callers validate plan names at the boundary.
func (c *Catalog) TermsFor(p model.Plan) (Terms, error) {
	t, ok := c.terms[p]
	if !ok {
		return Terms{}, fmt.Errorf("unknown plan %q", p)
	}
	return t, nil
}

// Known reports whether the plan exists in the catalog.
func (c *Catalog) Known(p model.Plan) bool {
	_, ok := c.terms[p]
	return ok
}
