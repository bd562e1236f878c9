package billing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/config"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/enums"
)

// Checkout plan keys as exposed to the dashboard.
const (
	PlanKeyBasic        = "basic"
	PlanKeyProfessional = "professional"
	PlanKeyCustom       = "custom"
)

const (
	basicCallsLimit        = 300
	professionalCallsLimit = 700
)

// Plan describes one purchasable tier. A zero Calls value means unlimited.
type Plan struct {
	Key      string          `json:"key"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	PriceID  string          `json:"-"`
	Calls    int             `json:"calls"`
	Features []string        `json:"features"`
}

// Catalog is the static plan catalog with price IDs bound from configuration.
type Catalog struct {
	plans []Plan
}

// NewCatalog builds the catalog from the configured Stripe price IDs.
func NewCatalog(cfg config.StripeConfig) *Catalog {
	return &Catalog{
		plans: []Plan{
			{
				Key:     PlanKeyBasic,
				Name:    "Basic",
				Price:   decimal.NewFromInt(30),
				PriceID: strings.TrimSpace(cfg.BasicPriceID),
				Calls:   basicCallsLimit,
				Features: []string{
					"300 Anrufe/Monat",
					"Automatische Reservierungen",
					"24/7 Erreichbarkeit",
					"E-Mail Benachrichtigungen",
					"Basis Analytics",
				},
			},
			{
				Key:     PlanKeyProfessional,
				Name:    "Professional",
				Price:   decimal.NewFromInt(60),
				PriceID: strings.TrimSpace(cfg.ProfessionalPriceID),
				Calls:   professionalCallsLimit,
				Features: []string{
					"700 Anrufe/Monat",
					"Automatische Reservierungen",
					"24/7 Erreichbarkeit",
					"E-Mail & SMS Benachrichtigungen",
					"Erweiterte Analytics",
					"Priorität Support",
					"Custom Voice Agent",
				},
			},
			{
				Key:   PlanKeyCustom,
				Name:  "Custom",
				Price: decimal.Zero,
				Calls: 0,
				Features: []string{
					"Unbegrenzte Anrufe",
					"Alle Professional Features",
					"Dedicated Account Manager",
					"Custom Integration",
					"SLA Garantie",
				},
			},
		},
	}
}

// Plans returns the catalog in display order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Get returns the plan for a checkout key.
func (c *Catalog) Get(key string) (Plan, bool) {
	for _, plan := range c.plans {
		if plan.Key == key {
			return plan, true
		}
	}
	return Plan{}, false
}

// KeyForPriceID resolves a Stripe price ID back to a plan key.
func (c *Catalog) KeyForPriceID(priceID string) (string, bool) {
	if priceID == "" {
		return "", false
	}
	for _, plan := range c.plans {
		if plan.PriceID != "" && plan.PriceID == priceID {
			return plan.Key, true
		}
	}
	return "", false
}

// SubscriptionPlanFor maps a checkout key to the persisted entitlement plan.
func (c *Catalog) SubscriptionPlanFor(key string) (enums.SubscriptionPlan, bool) {
	switch key {
	case PlanKeyBasic:
		return enums.SubscriptionPlanStarter, true
	case PlanKeyProfessional:
		return enums.SubscriptionPlanPro, true
	case PlanKeyCustom:
		return enums.SubscriptionPlanEnterprise, true
	default:
		return "", false
	}
}

// CallsLimitFor returns the monthly quota for a checkout key. Nil means
// unlimited.
func (c *Catalog) CallsLimitFor(key string) *int {
	plan, ok := c.Get(key)
	if !ok || plan.Calls <= 0 {
		return nil
	}
	limit := plan.Calls
	return &limit
}
