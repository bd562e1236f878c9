package enums

import "fmt"

// SubscriptionPlan is the entitlement label stored per practice.
type SubscriptionPlan string

const (
	SubscriptionPlanTrial      SubscriptionPlan = "trial"
	SubscriptionPlanStarter    SubscriptionPlan = "starter"
	SubscriptionPlanPro        SubscriptionPlan = "pro"
	SubscriptionPlanEnterprise SubscriptionPlan = "enterprise"
	SubscriptionPlanExpired    SubscriptionPlan = "expired"
)

var validSubscriptionPlans = []SubscriptionPlan{
	SubscriptionPlanTrial,
	SubscriptionPlanStarter,
	SubscriptionPlanPro,
	SubscriptionPlanEnterprise,
	SubscriptionPlanExpired,
}

// String implements fmt.Stringer.
func (p SubscriptionPlan) String() string {
	return string(p)
}

// IsValid reports whether the value is a known SubscriptionPlan.
func (p SubscriptionPlan) IsValid() bool {
	for _, candidate := range validSubscriptionPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsPaid reports whether the plan was bought through checkout.
func (p SubscriptionPlan) IsPaid() bool {
	switch p {
	case SubscriptionPlanStarter, SubscriptionPlanPro, SubscriptionPlanEnterprise:
		return true
	default:
		return false
	}
}

// ParseSubscriptionPlan converts raw input into a SubscriptionPlan.
func ParseSubscriptionPlan(value string) (SubscriptionPlan, error) {
	for _, candidate := range validSubscriptionPlans {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription plan %q", value)
}
