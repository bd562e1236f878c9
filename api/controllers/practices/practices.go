package practices

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/api/middleware"
	"github.com/tabletalk-ai/tabletalk-backend/api/responses"
	"github.com/tabletalk-ai/tabletalk-backend/api/validators"
	practicesvc "github.com/tabletalk-ai/tabletalk-backend/internal/practices"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

// PracticeService describes the practice methods used by the HTTP controllers.
type PracticeService interface {
	FindByUserID(ctx context.Context, userID string) (*models.Practice, error)
	UpsertOnboarding(ctx context.Context, userID string, input practicesvc.OnboardingInput) (*models.Practice, error)
	CompleteOnboarding(ctx context.Context, userID string) (*models.Practice, error)
	UpdateSettings(ctx context.Context, userID string, input practicesvc.SettingsInput) (*models.Practice, error)
}

type onboardingRequest struct {
	Name        string   `json:"name" validate:"required"`
	Email       *string  `json:"email,omitempty"`
	Phone       *string  `json:"phone,omitempty"`
	OpeningTime *string  `json:"opening_time,omitempty"`
	ClosingTime *string  `json:"closing_time,omitempty"`
	MaxCapacity *int     `json:"max_capacity,omitempty"`
	ClosedDays  []string `json:"closed_days,omitempty"`
}

type settingsRequest struct {
	Name        *string  `json:"name,omitempty"`
	Email       *string  `json:"email,omitempty"`
	Phone       *string  `json:"phone,omitempty"`
	OpeningTime *string  `json:"opening_time,omitempty"`
	ClosingTime *string  `json:"closing_time,omitempty"`
	MaxCapacity *int     `json:"max_capacity,omitempty"`
	ClosedDays  []string `json:"closed_days,omitempty"`
}

type practiceResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Email               *string    `json:"email,omitempty"`
	Phone               *string    `json:"phone,omitempty"`
	Timezone            string     `json:"timezone"`
	OpeningTime         *string    `json:"opening_time,omitempty"`
	ClosingTime         *string    `json:"closing_time,omitempty"`
	MaxCapacity         *int       `json:"max_capacity,omitempty"`
	ClosedDays          []string   `json:"closed_days"`
	TwilioNumber        *string    `json:"twilio_number,omitempty"`
	SubscriptionPlan    string     `json:"subscription_plan"`
	SubscriptionStatus  string     `json:"subscription_status"`
	CallsLimit          *int       `json:"calls_limit"`
	TrialEndsAt         *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt  *time.Time `json:"subscription_ends_at,omitempty"`
	CancelAtPeriodEnd   *bool      `json:"cancel_at_period_end,omitempty"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Me returns the caller's practice.
func Me(svc PracticeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "practice service unavailable"))
			return
		}

		practice, err := svc.FindByUserID(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPracticeResponse(practice))
	}
}

// OnboardingSave stores the restaurant profile captured during onboarding.
func OnboardingSave(svc PracticeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "practice service unavailable"))
			return
		}

		var payload onboardingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		practice, err := svc.UpsertOnboarding(ctx, middleware.UserIDFromContext(ctx), practicesvc.OnboardingInput{
			Name:        payload.Name,
			Email:       payload.Email,
			Phone:       payload.Phone,
			OpeningTime: payload.OpeningTime,
			ClosingTime: payload.ClosingTime,
			MaxCapacity: payload.MaxCapacity,
			ClosedDays:  payload.ClosedDays,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPracticeResponse(practice))
	}
}

// OnboardingComplete marks onboarding done and starts the trial.
func OnboardingComplete(svc PracticeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "practice service unavailable"))
			return
		}

		practice, err := svc.CompleteOnboarding(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPracticeResponse(practice))
	}
}

// SettingsUpdate applies a partial settings update to the caller's practice.
func SettingsUpdate(svc PracticeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "practice service unavailable"))
			return
		}

		var payload settingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		practice, err := svc.UpdateSettings(ctx, middleware.UserIDFromContext(ctx), practicesvc.SettingsInput{
			Name:        payload.Name,
			Email:       payload.Email,
			Phone:       payload.Phone,
			OpeningTime: payload.OpeningTime,
			ClosingTime: payload.ClosingTime,
			MaxCapacity: payload.MaxCapacity,
			ClosedDays:  payload.ClosedDays,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPracticeResponse(practice))
	}
}

func newPracticeResponse(practice *models.Practice) *practiceResponse {
	if practice == nil {
		return nil
	}
	closedDays := make([]string, len(practice.ClosedDays))
	copy(closedDays, practice.ClosedDays)

	return &practiceResponse{
		ID:                  practice.ID,
		Name:                practice.Name,
		Email:               practice.Email,
		Phone:               practice.Phone,
		Timezone:            practice.Timezone,
		OpeningTime:         practice.OpeningTime,
		ClosingTime:         practice.ClosingTime,
		MaxCapacity:         practice.MaxCapacity,
		ClosedDays:          closedDays,
		TwilioNumber:        practice.TwilioNumber,
		SubscriptionPlan:    string(practice.SubscriptionPlan),
		SubscriptionStatus:  string(practice.SubscriptionStatus),
		CallsLimit:          practice.CallsLimit,
		TrialEndsAt:         practice.TrialEndsAt,
		SubscriptionEndsAt:  practice.SubscriptionEndsAt,
		CancelAtPeriodEnd:   practice.CancelAtPeriodEnd,
		OnboardingCompleted: practice.OnboardingCompleted,
		CreatedAt:           practice.CreatedAt,
	}
}
