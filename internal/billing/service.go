package billing

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

const billingReturnPath = "/dashboard/billing"

// PracticeStore is the persistence surface the billing service needs.
type PracticeStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.Practice, error)
	SetStripeCustomerID(ctx context.Context, practiceID uuid.UUID, customerID string) error
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Practices PracticeStore
	Stripe    StripeBillingClient
	Catalog   *Catalog
	PublicURL string
	Logger    *logger.Logger
}

// Service drives checkout and portal sessions against Stripe.
type Service struct {
	practices PracticeStore
	stripe    StripeBillingClient
	catalog   *Catalog
	publicURL string
	logger    *logger.Logger
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Practices == nil {
		return nil, stdErrors.New("practice store is required")
	}
	if params.Stripe == nil {
		return nil, stdErrors.New("stripe client is required")
	}
	if params.Catalog == nil {
		return nil, stdErrors.New("catalog is required")
	}
	if strings.TrimSpace(params.PublicURL) == "" {
		return nil, stdErrors.New("public url is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	return &Service{
		practices: params.Practices,
		stripe:    params.Stripe,
		catalog:   params.Catalog,
		publicURL: strings.TrimRight(params.PublicURL, "/"),
		logger:    params.Logger,
	}, nil
}

// Catalog exposes the plan catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// StartCheckout creates a Stripe Checkout session for the given plan and
// returns the hosted payment URL. A practice that already holds a
// subscription gets the old one cancelled first; cancel failures are logged
// and do not block the new purchase.
func (s *Service) StartCheckout(ctx context.Context, userID, planKey string) (string, error) {
	plan, ok := s.catalog.Get(planKey)
	if !ok {
		return "", errors.New(errors.CodeValidation, "invalid plan")
	}
	if plan.PriceID == "" {
		return "", errors.New(errors.CodeValidation, "plan not available for checkout")
	}

	practice, err := s.practices.FindByUserID(ctx, userID)
	if err != nil {
		return "", err
	}

	customerID, err := s.ensureCustomer(ctx, practice, userID)
	if err != nil {
		return "", err
	}

	if practice.StripeSubscriptionID != nil && *practice.StripeSubscriptionID != "" {
		if _, cancelErr := s.stripe.CancelSubscription(ctx, *practice.StripeSubscriptionID, nil); cancelErr != nil {
			warnCtx := s.logger.WithFields(ctx, map[string]any{
				"subscription_id": *practice.StripeSubscriptionID,
				"error":           cancelErr.Error(),
			})
			s.logger.Warn(warnCtx, "failed to cancel existing subscription")
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.publicURL + billingReturnPath + "?success=true"),
		CancelURL:  stripe.String(s.publicURL + billingReturnPath + "?canceled=true"),
	}
	params.Metadata = map[string]string{
		"userId": userID,
		"plan":   plan.Key,
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", errors.Wrap(errors.CodeDependency, err, "creating checkout session")
	}
	return session.URL, nil
}

// OpenPortal creates a Stripe billing portal session for the practice's
// customer and returns its URL.
func (s *Service) OpenPortal(ctx context.Context, userID string) (string, error) {
	practice, err := s.practices.FindByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if practice.StripeCustomerID == nil || *practice.StripeCustomerID == "" {
		return "", errors.New(errors.CodeValidation, "stripe customer not found")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*practice.StripeCustomerID),
		ReturnURL: stripe.String(s.publicURL + billingReturnPath),
	}
	session, err := s.stripe.CreatePortalSession(ctx, params)
	if err != nil {
		return "", errors.Wrap(errors.CodeDependency, err, "creating portal session")
	}
	return session.URL, nil
}

func (s *Service) ensureCustomer(ctx context.Context, practice *models.Practice, userID string) (string, error) {
	if practice.StripeCustomerID != nil && *practice.StripeCustomerID != "" {
		return *practice.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{}
	if practice.Email != nil && *practice.Email != "" {
		params.Email = stripe.String(*practice.Email)
	}
	params.Metadata = map[string]string{"userId": userID}

	cust, err := s.stripe.CreateCustomer(ctx, params)
	if err != nil {
		return "", errors.Wrap(errors.CodeDependency, err, "creating stripe customer")
	}

	if err := s.practices.SetStripeCustomerID(ctx, practice.ID, cust.ID); err != nil {
		return "", fmt.Errorf("persisting stripe customer id: %w", err)
	}
	practice.StripeCustomerID = &cust.ID
	return cust.ID, nil
}
