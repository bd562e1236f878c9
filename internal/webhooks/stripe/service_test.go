package stripewebhook

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/tabletalk-ai/tabletalk-backend/internal/billing"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/config"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/enums"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

type stubEntitlementStore struct {
	rowsByUser     int64
	rowsByCustomer int64
	err            error

	lastUserID     string
	lastCustomerID string
	lastFields     map[string]any
	calls          int
}

func (s *stubEntitlementStore) ApplyEntitlementByUserID(ctx context.Context, userID string, fields map[string]any) (int64, error) {
	s.calls++
	s.lastUserID = userID
	s.lastFields = fields
	return s.rowsByUser, s.err
}

func (s *stubEntitlementStore) ApplyEntitlementByCustomerID(ctx context.Context, customerID string, fields map[string]any) (int64, error) {
	s.calls++
	s.lastCustomerID = customerID
	s.lastFields = fields
	return s.rowsByCustomer, s.err
}

type stubFetcher struct {
	sub *stripe.Subscription
	err error
	got []string
}

func (s *stubFetcher) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.got = append(s.got, id)
	return s.sub, s.err
}

// applyingEntitlementStore materializes the field maps onto a practice record
// so set-to-value convergence can be asserted across redeliveries.
type applyingEntitlementStore struct {
	practice models.Practice
}

func (s *applyingEntitlementStore) ApplyEntitlementByUserID(ctx context.Context, userID string, fields map[string]any) (int64, error) {
	s.apply(fields)
	return 1, nil
}

func (s *applyingEntitlementStore) ApplyEntitlementByCustomerID(ctx context.Context, customerID string, fields map[string]any) (int64, error) {
	s.apply(fields)
	return 1, nil
}

func (s *applyingEntitlementStore) apply(fields map[string]any) {
	for column, value := range fields {
		switch column {
		case "subscription_plan":
			s.practice.SubscriptionPlan = value.(enums.SubscriptionPlan)
		case "subscription_status":
			s.practice.SubscriptionStatus = value.(enums.SubscriptionStatus)
		case "calls_limit":
			if value == nil {
				s.practice.CallsLimit = nil
			} else {
				v := value.(int)
				s.practice.CallsLimit = &v
			}
		case "stripe_customer_id":
			v := value.(string)
			s.practice.StripeCustomerID = &v
		case "stripe_subscription_id":
			v := value.(string)
			s.practice.StripeSubscriptionID = &v
		case "subscription_ends_at":
			if value == nil {
				s.practice.SubscriptionEndsAt = nil
			} else {
				v := value.(time.Time)
				s.practice.SubscriptionEndsAt = &v
			}
		case "cancel_at_period_end":
			if value == nil {
				s.practice.CancelAtPeriodEnd = nil
			} else {
				v := value.(bool)
				s.practice.CancelAtPeriodEnd = &v
			}
		}
	}
}

func testService(t *testing.T, store entitlementStore, fetcher *stubFetcher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Practices: store,
		Stripe:    fetcher,
		Catalog: billing.NewCatalog(config.StripeConfig{
			BasicPriceID:        "price_basic",
			ProfessionalPriceID: "price_professional",
		}),
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func eventOf(t *testing.T, eventType stripe.EventType, payload any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_test",
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleCheckoutCompletedAppliesEntitlement(t *testing.T) {
	store := &stubEntitlementStore{rowsByUser: 1}
	fetcher := &stubFetcher{
		sub: &stripe.Subscription{
			CancelAtPeriodEnd: false,
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{{CurrentPeriodEnd: 1767225600}},
			},
		},
	}
	svc := testService(t, store, fetcher)

	event := eventOf(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"metadata":     map[string]string{"userId": "user-1", "plan": "professional"},
		"customer":     map[string]any{"id": "cus_1"},
		"subscription": map[string]any{"id": "sub_1"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastUserID != "user-1" {
		t.Fatalf("update must be keyed by userId metadata, got %q", store.lastUserID)
	}
	if len(fetcher.got) != 1 || fetcher.got[0] != "sub_1" {
		t.Fatalf("subscription not fetched: %v", fetcher.got)
	}

	fields := store.lastFields
	if fields["subscription_plan"] != enums.SubscriptionPlanPro {
		t.Fatalf("expected pro plan, got %v", fields["subscription_plan"])
	}
	if fields["subscription_status"] != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %v", fields["subscription_status"])
	}
	if fields["calls_limit"] != 700 {
		t.Fatalf("expected 700 calls, got %v", fields["calls_limit"])
	}
	if fields["stripe_customer_id"] != "cus_1" || fields["stripe_subscription_id"] != "sub_1" {
		t.Fatalf("stripe references not recorded: %v", fields)
	}
	wantEnd := time.Unix(1767225600, 0).UTC()
	if got, ok := fields["subscription_ends_at"].(time.Time); !ok || !got.Equal(wantEnd) {
		t.Fatalf("expected renewal %s, got %v", wantEnd, fields["subscription_ends_at"])
	}
	if fields["cancel_at_period_end"] != false {
		t.Fatalf("expected cancel flag false, got %v", fields["cancel_at_period_end"])
	}
}

func TestHandleCheckoutCompletedCustomPlanUnlimited(t *testing.T) {
	store := &stubEntitlementStore{rowsByUser: 1}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"metadata": map[string]string{"userId": "user-1", "plan": "custom"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastFields["subscription_plan"] != enums.SubscriptionPlanEnterprise {
		t.Fatalf("expected enterprise plan, got %v", store.lastFields["subscription_plan"])
	}
	if store.lastFields["calls_limit"] != nil {
		t.Fatalf("custom plan must clear the quota, got %v", store.lastFields["calls_limit"])
	}
}

func TestHandleCheckoutCompletedMissingMetadataIsAcked(t *testing.T) {
	store := &stubEntitlementStore{rowsByUser: 1}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"metadata": map[string]string{"plan": "basic"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("missing metadata must be acknowledged: %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("no update expected")
	}
}

func TestHandleCheckoutCompletedUnknownPracticeIsAcked(t *testing.T) {
	store := &stubEntitlementStore{rowsByUser: 0}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"metadata": map[string]string{"userId": "ghost", "plan": "basic"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown practice must be acknowledged: %v", err)
	}
}

func TestHandleCheckoutCompletedFetchFailureIsRetriable(t *testing.T) {
	store := &stubEntitlementStore{rowsByUser: 1}
	fetcher := &stubFetcher{err: stdErrors.New("stripe down")}
	svc := testService(t, store, fetcher)

	event := eventOf(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"metadata":     map[string]string{"userId": "user-1", "plan": "basic"},
		"subscription": map[string]any{"id": "sub_1"},
	})

	err := svc.HandleEvent(context.Background(), event)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("entitlement must not be written on fetch failure")
	}
}

func TestHandleSubscriptionUpdatedMapsPlanFromPrice(t *testing.T) {
	store := &stubEntitlementStore{rowsByCustomer: 1}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCustomerSubscriptionUpdated, map[string]any{
		"id":                   "sub_2",
		"customer":             map[string]any{"id": "cus_2"},
		"status":               "active",
		"cancel_at_period_end": true,
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_basic"}, "current_period_end": 1767225600},
			},
		},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastCustomerID != "cus_2" {
		t.Fatalf("update must be keyed by customer, got %q", store.lastCustomerID)
	}

	fields := store.lastFields
	if fields["subscription_plan"] != enums.SubscriptionPlanStarter {
		t.Fatalf("expected starter from price_basic, got %v", fields["subscription_plan"])
	}
	if fields["calls_limit"] != 300 {
		t.Fatalf("expected 300 calls, got %v", fields["calls_limit"])
	}
	if fields["subscription_status"] != enums.SubscriptionStatusActive {
		t.Fatalf("expected active, got %v", fields["subscription_status"])
	}
	if fields["cancel_at_period_end"] != true {
		t.Fatalf("expected cancel flag true, got %v", fields["cancel_at_period_end"])
	}
	wantEnd := time.Unix(1767225600, 0).UTC()
	if got, ok := fields["subscription_ends_at"].(time.Time); !ok || !got.Equal(wantEnd) {
		t.Fatalf("expected renewal %s, got %v", wantEnd, fields["subscription_ends_at"])
	}
}

func TestHandleSubscriptionUpdatedReplayConverges(t *testing.T) {
	store := &applyingEntitlementStore{}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCustomerSubscriptionUpdated, map[string]any{
		"id":                   "sub_2",
		"customer":             map[string]any{"id": "cus_2"},
		"status":               "active",
		"cancel_at_period_end": false,
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_basic"}, "current_period_end": 1767225600},
			},
		},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	first := store.practice
	if first.SubscriptionPlan != enums.SubscriptionPlanStarter || first.CallsLimit == nil || *first.CallsLimit != 300 {
		t.Fatalf("unexpected record after first delivery: %+v", first)
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !reflect.DeepEqual(first, store.practice) {
		t.Fatalf("redelivery must converge to the same record:\nfirst:  %+v\nsecond: %+v", first, store.practice)
	}
}

func TestHandleCheckoutCompletedWithoutSubscriptionClearsRenewal(t *testing.T) {
	endsAt := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	cancel := true
	store := &applyingEntitlementStore{practice: models.Practice{
		SubscriptionEndsAt: &endsAt,
		CancelAtPeriodEnd:  &cancel,
	}}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"metadata": map[string]string{"userId": "user-1", "plan": "basic"},
		"customer": map[string]any{"id": "cus_1"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.practice.SubscriptionEndsAt != nil {
		t.Fatalf("renewal timestamp from the previous subscription must be cleared, got %v", store.practice.SubscriptionEndsAt)
	}
	if store.practice.CancelAtPeriodEnd != nil {
		t.Fatalf("cancel flag from the previous subscription must be cleared, got %v", store.practice.CancelAtPeriodEnd)
	}
}

func TestHandleSubscriptionTrialingCountsAsActive(t *testing.T) {
	store := &stubEntitlementStore{rowsByCustomer: 1}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCustomerSubscriptionUpdated, map[string]any{
		"id":       "sub_2",
		"customer": map[string]any{"id": "cus_2"},
		"status":   "trialing",
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastFields["subscription_status"] != enums.SubscriptionStatusActive {
		t.Fatalf("trialing must map to active, got %v", store.lastFields["subscription_status"])
	}
}

func TestHandleSubscriptionDeletedForcesExpired(t *testing.T) {
	store := &stubEntitlementStore{rowsByCustomer: 1}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCustomerSubscriptionDeleted, map[string]any{
		"id":       "sub_2",
		"customer": map[string]any{"id": "cus_2"},
		"status":   "canceled",
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_professional"}},
			},
		},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fields := store.lastFields
	if fields["subscription_status"] != enums.SubscriptionStatusExpired {
		t.Fatalf("expected expired status, got %v", fields["subscription_status"])
	}
	if fields["subscription_plan"] != enums.SubscriptionPlanExpired {
		t.Fatalf("expired subscription must force expired plan even with a known price, got %v", fields["subscription_plan"])
	}
	if limit, ok := fields["calls_limit"]; !ok || limit != nil {
		t.Fatalf("expired subscription must clear the quota, got %v", limit)
	}
}

func TestHandleSubscriptionUnknownPriceKeepsPlanUntouched(t *testing.T) {
	store := &stubEntitlementStore{rowsByCustomer: 1}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCustomerSubscriptionUpdated, map[string]any{
		"id":       "sub_2",
		"customer": map[string]any{"id": "cus_2"},
		"status":   "active",
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_unknown"}},
			},
		},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.lastFields["subscription_plan"]; ok {
		t.Fatalf("unknown price must not change the plan")
	}
	if _, ok := store.lastFields["calls_limit"]; ok {
		t.Fatalf("unknown price must not change the quota")
	}
}

func TestHandleSubscriptionMissingCustomerIsAcked(t *testing.T) {
	store := &stubEntitlementStore{rowsByCustomer: 1}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeCustomerSubscriptionUpdated, map[string]any{
		"id":     "sub_2",
		"status": "active",
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("missing customer must be acknowledged: %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("no update expected")
	}
}

func TestHandleUnhandledEventTypeIsAcked(t *testing.T) {
	store := &stubEntitlementStore{}
	svc := testService(t, store, &stubFetcher{})

	event := eventOf(t, stripe.EventTypeInvoicePaid, map[string]any{"id": "in_1"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unhandled type must be acknowledged: %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("no update expected")
	}
}

func TestHandleEventRequiresData(t *testing.T) {
	svc := testService(t, &stubEntitlementStore{}, &stubFetcher{})
	err := svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventTypeCheckoutSessionCompleted})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
