package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/subscription"

	"github.com/tabletalk-ai/tabletalk-backend/internal/billing"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/enums"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/metrics"
)

// Skip reasons reported when an event is acknowledged without an update.
const (
	skipReasonUnhandledType    = "unhandled_type"
	skipReasonMissingMetadata  = "missing_metadata"
	skipReasonMissingCustomer  = "missing_customer"
	skipReasonPracticeNotFound = "practice_not_found"
)

type eventKind int

const (
	eventKindIgnored eventKind = iota
	eventKindCheckoutCompleted
	eventKindSubscriptionChanged
)

func classify(eventType stripe.EventType) eventKind {
	switch eventType {
	case stripe.EventTypeCheckoutSessionCompleted:
		return eventKindCheckoutCompleted
	case stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		return eventKindSubscriptionChanged
	default:
		return eventKindIgnored
	}
}

type entitlementStore interface {
	ApplyEntitlementByUserID(ctx context.Context, userID string, fields map[string]any) (int64, error)
	ApplyEntitlementByCustomerID(ctx context.Context, customerID string, fields map[string]any) (int64, error)
}

// SubscriptionFetcher retrieves subscriptions referenced by checkout sessions.
type SubscriptionFetcher interface {
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type subscriptionFetcherWrapper struct{}

// NewSubscriptionFetcher returns the production Stripe-backed fetcher.
func NewSubscriptionFetcher() SubscriptionFetcher {
	return &subscriptionFetcherWrapper{}
}

func (w *subscriptionFetcherWrapper) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = ctx
	return subscription.Get(id, params)
}

type ServiceParams struct {
	Practices entitlementStore
	Stripe    SubscriptionFetcher
	Catalog   *billing.Catalog
	Logger    *logger.Logger
	Metrics   *metrics.WebhookMetrics
}

// Service reconciles practice entitlements from Stripe webhook events.
type Service struct {
	practices entitlementStore
	stripe    SubscriptionFetcher
	catalog   *billing.Catalog
	logger    *logger.Logger
	metrics   *metrics.WebhookMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Practices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "practice store required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		practices: params.Practices,
		stripe:    params.Stripe,
		catalog:   params.Catalog,
		logger:    params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// HandleEvent applies one verified Stripe event to the entitlement store.
// Events that carry nothing actionable are acknowledged without error so
// Stripe does not retry them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	eventType := string(event.Type)
	started := time.Now()
	s.metrics.IncReceived(eventType)
	defer func() {
		s.metrics.ObserveDuration(eventType, time.Since(started))
	}()

	ctx = s.logger.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": eventType,
	})

	var err error
	switch classify(event.Type) {
	case eventKindCheckoutCompleted:
		err = s.handleCheckoutCompleted(ctx, event)
	case eventKindSubscriptionChanged:
		err = s.handleSubscriptionChanged(ctx, event)
	default:
		s.logger.Info(ctx, "unhandled stripe event type")
		s.metrics.IncSkipped(eventType, skipReasonUnhandledType)
		return nil
	}

	if err != nil {
		s.metrics.IncFailure(eventType)
	}
	return err
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}

	userID := session.Metadata["userId"]
	planKey := session.Metadata["plan"]
	if userID == "" || planKey == "" {
		s.logger.Warn(ctx, "checkout session missing userId/plan metadata")
		s.metrics.IncSkipped(string(event.Type), skipReasonMissingMetadata)
		return nil
	}

	// Renewal bookkeeping is cleared up front so a session without a
	// subscription id cannot leave a prior subscription's timestamps behind.
	fields := map[string]any{
		"subscription_status":  enums.SubscriptionStatusActive,
		"calls_limit":          intPtrField(s.catalog.CallsLimitFor(planKey)),
		"subscription_ends_at": nil,
		"cancel_at_period_end": nil,
	}
	if plan, ok := s.catalog.SubscriptionPlanFor(planKey); ok {
		fields["subscription_plan"] = plan
	}
	if customerID := customerIDOf(session.Customer); customerID != "" {
		fields["stripe_customer_id"] = customerID
	}

	if subscriptionID := subscriptionIDOf(session.Subscription); subscriptionID != "" {
		fields["stripe_subscription_id"] = subscriptionID

		sub, err := s.stripe.Get(ctx, subscriptionID, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		fields["subscription_ends_at"] = timePtrField(RenewalTimestamp(sub))
		fields["cancel_at_period_end"] = sub.CancelAtPeriodEnd
	}

	rows, err := s.practices.ApplyEntitlementByUserID(ctx, userID, fields)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply entitlement")
	}
	if rows == 0 {
		s.logger.Warn(s.logger.WithUserID(ctx, userID), "no practice matched checkout session")
		s.metrics.IncSkipped(string(event.Type), skipReasonPracticeNotFound)
		return nil
	}

	s.logger.Info(s.logger.WithUserID(ctx, userID), "entitlement updated from checkout session")
	s.metrics.IncApplied(string(event.Type))
	return nil
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
	}

	customerID := customerIDOf(sub.Customer)
	if customerID == "" {
		s.logger.Warn(ctx, "subscription event missing customer")
		s.metrics.IncSkipped(string(event.Type), skipReasonMissingCustomer)
		return nil
	}

	status := statusFromStripe(sub.Status)
	fields := map[string]any{
		"stripe_customer_id":     customerID,
		"stripe_subscription_id": sub.ID,
		"subscription_status":    status,
		"cancel_at_period_end":   sub.CancelAtPeriodEnd,
	}
	if renewal := RenewalTimestamp(&sub); renewal != nil {
		fields["subscription_ends_at"] = *renewal
	}

	if status == enums.SubscriptionStatusExpired {
		fields["subscription_plan"] = enums.SubscriptionPlanExpired
		fields["calls_limit"] = nil
	} else if planKey, ok := s.catalog.KeyForPriceID(firstItemPriceID(&sub)); ok {
		if plan, mapped := s.catalog.SubscriptionPlanFor(planKey); mapped {
			fields["subscription_plan"] = plan
			fields["calls_limit"] = intPtrField(s.catalog.CallsLimitFor(planKey))
		}
	}

	rows, err := s.practices.ApplyEntitlementByCustomerID(ctx, customerID, fields)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply entitlement")
	}
	if rows == 0 {
		s.logger.Warn(ctx, "no practice matched stripe customer")
		s.metrics.IncSkipped(string(event.Type), skipReasonPracticeNotFound)
		return nil
	}

	s.logger.Info(ctx, "entitlement updated from subscription event")
	s.metrics.IncApplied(string(event.Type))
	return nil
}

// statusFromStripe collapses Stripe's lifecycle into the local two-state
// model: active and trialing count as active, everything else is expired.
func statusFromStripe(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusActive
	default:
		return enums.SubscriptionStatusExpired
	}
}

func customerIDOf(customer *stripe.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.ID
}

func subscriptionIDOf(sub *stripe.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.ID
}

// intPtrField turns an optional limit into a column value, mapping nil to
// SQL NULL (unlimited).
func intPtrField(limit *int) any {
	if limit == nil {
		return nil
	}
	return *limit
}

func timePtrField(ts *time.Time) any {
	if ts == nil {
		return nil
	}
	return *ts
}
