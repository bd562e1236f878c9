package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/enums"
)

// Practice is the canonical tenant model. Entitlement state lives directly on
// the row so webhook reconciliation and quota checks read a single record.
type Practice struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID   string    `gorm:"column:user_id;not null;unique"`
	Name     string    `gorm:"column:name;not null"`
	Email    *string   `gorm:"column:email"`
	Phone    *string   `gorm:"column:phone"`
	Timezone string    `gorm:"column:timezone;not null;default:'Europe/Berlin'"`

	OpeningTime *string        `gorm:"column:opening_time"`
	ClosingTime *string        `gorm:"column:closing_time"`
	MaxCapacity *int           `gorm:"column:max_capacity"`
	ClosedDays  pq.StringArray `gorm:"column:closed_days;type:text[]"`

	TwilioNumber    *string `gorm:"column:twilio_number;unique"`
	TwilioNumberSID *string `gorm:"column:twilio_number_sid"`

	StripeCustomerID     *string `gorm:"column:stripe_customer_id;unique"`
	StripeSubscriptionID *string `gorm:"column:stripe_subscription_id"`

	SubscriptionPlan   enums.SubscriptionPlan   `gorm:"column:subscription_plan;type:subscription_plan;not null;default:'trial'"`
	SubscriptionStatus enums.SubscriptionStatus `gorm:"column:subscription_status;type:subscription_status;not null;default:'active'"`

	// CallsLimit is the monthly inbound-call quota. NULL means unlimited.
	CallsLimit *int `gorm:"column:calls_limit"`

	TrialStartedAt     *time.Time `gorm:"column:trial_started_at"`
	TrialEndsAt        *time.Time `gorm:"column:trial_ends_at"`
	SubscriptionEndsAt *time.Time `gorm:"column:subscription_ends_at"`
	CancelAtPeriodEnd  *bool      `gorm:"column:cancel_at_period_end"`

	OnboardingCompleted bool `gorm:"column:onboarding_completed;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
