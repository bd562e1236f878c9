package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/tabletalk-ai/tabletalk-backend/api/middleware"
	"github.com/tabletalk-ai/tabletalk-backend/api/responses"
	"github.com/tabletalk-ai/tabletalk-backend/api/validators"
	billingsvc "github.com/tabletalk-ai/tabletalk-backend/internal/billing"
	usagesvc "github.com/tabletalk-ai/tabletalk-backend/internal/usage"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

// CheckoutService describes the billing methods used by the HTTP controllers.
type CheckoutService interface {
	StartCheckout(ctx context.Context, userID, planKey string) (string, error)
	OpenPortal(ctx context.Context, userID string) (string, error)
}

type practiceReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Practice, error)
}

type usageReader interface {
	MonthlySummary(ctx context.Context, practice *models.Practice) (*usagesvc.Summary, error)
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required"`
}

type sessionResponse struct {
	URL string `json:"url"`
}

type planResponse struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Calls       int      `json:"calls"`
	Unlimited   bool     `json:"unlimited"`
	Purchasable bool     `json:"purchasable"`
	Features    []string `json:"features"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

type subscriptionResponse struct {
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	CallsLimit         *int       `json:"calls_limit"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	CancelAtPeriodEnd  *bool      `json:"cancel_at_period_end,omitempty"`
}

type usageResponse struct {
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	CallsUsed    int64     `json:"calls_used"`
	CallsLimit   *int      `json:"calls_limit"`
	LimitReached bool      `json:"limit_reached"`
	Reservations int64     `json:"reservations"`
}

type overviewResponse struct {
	Subscription subscriptionResponse `json:"subscription"`
	Usage        usageResponse        `json:"usage"`
}

// Plans lists the purchasable tiers.
func Plans(catalog *billingsvc.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog unavailable"))
			return
		}

		plans := catalog.Plans()
		out := make([]planResponse, 0, len(plans))
		for _, plan := range plans {
			features := make([]string, len(plan.Features))
			copy(features, plan.Features)
			out = append(out, planResponse{
				Key:         plan.Key,
				Name:        plan.Name,
				Price:       plan.Price.StringFixed(2),
				Calls:       plan.Calls,
				Unlimited:   plan.Calls <= 0,
				Purchasable: plan.PriceID != "",
				Features:    features,
			})
		}
		responses.WriteSuccess(w, planListResponse{Plans: out})
	}
}

// CheckoutCreate opens a Stripe Checkout session for the caller.
func CheckoutCreate(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		url, err := svc.StartCheckout(ctx, middleware.UserIDFromContext(ctx), payload.Plan)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionResponse{URL: url})
	}
}

// PortalCreate opens a Stripe billing portal session for the caller.
func PortalCreate(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		url, err := svc.OpenPortal(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionResponse{URL: url})
	}
}

// Overview reports the caller's entitlement state and month-to-date usage.
func Overview(practices practiceReader, usage usageReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if practices == nil || usage == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing overview unavailable"))
			return
		}

		practice, err := practices.FindByUserID(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		summary, err := usage.MonthlySummary(ctx, practice)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// The counter has no notion of quota. A nil limit means unlimited
		// and is never reported as reached.
		limitReached := practice.CallsLimit != nil && summary.CallsUsed >= int64(*practice.CallsLimit)

		responses.WriteSuccess(w, overviewResponse{
			Subscription: subscriptionResponse{
				Plan:               string(practice.SubscriptionPlan),
				Status:             string(practice.SubscriptionStatus),
				CallsLimit:         practice.CallsLimit,
				TrialEndsAt:        practice.TrialEndsAt,
				SubscriptionEndsAt: practice.SubscriptionEndsAt,
				CancelAtPeriodEnd:  practice.CancelAtPeriodEnd,
			},
			Usage: usageResponse{
				PeriodStart:  summary.PeriodStart,
				PeriodEnd:    summary.PeriodEnd,
				CallsUsed:    summary.CallsUsed,
				CallsLimit:   practice.CallsLimit,
				LimitReached: limitReached,
				Reservations: summary.Reservations,
			},
		})
	}
}
