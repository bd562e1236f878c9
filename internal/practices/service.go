package practices

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/enums"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

// Trial terms applied when onboarding completes.
const (
	TrialDurationDays = 7
	TrialCallsLimit   = 300
)

// OnboardingInput carries the restaurant profile captured during onboarding.
type OnboardingInput struct {
	Name        string
	Email       *string
	Phone       *string
	OpeningTime *string
	ClosingTime *string
	MaxCapacity *int
	ClosedDays  []string
}

// SettingsInput carries the editable practice settings.
type SettingsInput struct {
	Name        *string
	Email       *string
	Phone       *string
	OpeningTime *string
	ClosingTime *string
	MaxCapacity *int
	ClosedDays  []string
}

// ServiceParams groups dependencies for the practice service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
	Now    func() time.Time
}

// Service owns the practice profile and its entitlement row.
type Service struct {
	repo   Repository
	logger *logger.Logger
	now    func() time.Time
}

// NewService builds a practice service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, stdErrors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, logger: params.Logger, now: now}, nil
}

// FindByUserID loads the caller's practice. Trials that have run out are
// expired in place before the row is returned.
func (s *Service) FindByUserID(ctx context.Context, userID string) (*models.Practice, error) {
	practice, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if practice == nil {
		return nil, errors.New(errors.CodeNotFound, "practice not found")
	}
	return s.expireTrialIfDue(ctx, practice)
}

// FindByID loads a practice by primary key.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.Practice, error) {
	practice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if practice == nil {
		return nil, errors.New(errors.CodeNotFound, "practice not found")
	}
	return s.expireTrialIfDue(ctx, practice)
}

// UpsertOnboarding saves the restaurant profile keyed by user. The row stays
// marked incomplete until CompleteOnboarding runs.
func (s *Service) UpsertOnboarding(ctx context.Context, userID string, input OnboardingInput) (*models.Practice, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New(errors.CodeValidation, "restaurant name is required")
	}

	practice := &models.Practice{
		UserID:              userID,
		Name:                strings.TrimSpace(input.Name),
		Email:               input.Email,
		Phone:               input.Phone,
		OpeningTime:         input.OpeningTime,
		ClosingTime:         input.ClosingTime,
		MaxCapacity:         input.MaxCapacity,
		ClosedDays:          pq.StringArray(input.ClosedDays),
		OnboardingCompleted: false,
	}
	if err := s.repo.Upsert(ctx, practice); err != nil {
		return nil, err
	}

	return s.repo.FindByUserID(ctx, userID)
}

// CompleteOnboarding marks onboarding done and starts the trial period.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string) (*models.Practice, error) {
	practice, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if practice == nil {
		return nil, errors.New(errors.CodeNotFound, "practice not found")
	}

	trialStart := s.now().UTC()
	trialEnd := trialStart.Add(TrialDurationDays * 24 * time.Hour)
	limit := TrialCallsLimit

	fields := map[string]any{
		"onboarding_completed": true,
		"subscription_plan":    enums.SubscriptionPlanTrial,
		"subscription_status":  enums.SubscriptionStatusActive,
		"trial_started_at":     trialStart,
		"trial_ends_at":        trialEnd,
		"calls_limit":          limit,
	}
	if _, err := s.repo.UpdateFieldsByUserID(ctx, userID, fields); err != nil {
		return nil, err
	}

	ctx = s.logger.WithPracticeID(ctx, practice.ID.String())
	s.logger.Info(ctx, "onboarding completed, trial started")

	return s.repo.FindByUserID(ctx, userID)
}

// UpdateSettings applies a partial settings update to the caller's practice.
func (s *Service) UpdateSettings(ctx context.Context, userID string, input SettingsInput) (*models.Practice, error) {
	practice, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if practice == nil {
		return nil, errors.New(errors.CodeNotFound, "practice not found")
	}

	fields := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, errors.New(errors.CodeValidation, "restaurant name cannot be empty")
		}
		fields["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		fields["email"] = *input.Email
	}
	if input.Phone != nil {
		fields["phone"] = *input.Phone
	}
	if input.OpeningTime != nil {
		fields["opening_time"] = *input.OpeningTime
	}
	if input.ClosingTime != nil {
		fields["closing_time"] = *input.ClosingTime
	}
	if input.MaxCapacity != nil {
		if *input.MaxCapacity <= 0 {
			return nil, errors.New(errors.CodeValidation, "max capacity must be positive")
		}
		fields["max_capacity"] = *input.MaxCapacity
	}
	if input.ClosedDays != nil {
		fields["closed_days"] = pq.StringArray(input.ClosedDays)
	}
	if len(fields) == 0 {
		return practice, nil
	}

	if _, err := s.repo.UpdateFieldsByID(ctx, practice.ID, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, practice.ID)
}

// SetStripeCustomerID persists the Stripe customer reference on the practice.
func (s *Service) SetStripeCustomerID(ctx context.Context, practiceID uuid.UUID, customerID string) error {
	_, err := s.repo.UpdateFieldsByID(ctx, practiceID, map[string]any{
		"stripe_customer_id": customerID,
	})
	if db.IsUniqueViolation(err, "") {
		return errors.Wrap(errors.CodeConflict, err, "stripe customer already linked to another practice")
	}
	return err
}

// SetTwilioNumber persists the provisioned phone number on the practice.
func (s *Service) SetTwilioNumber(ctx context.Context, practiceID uuid.UUID, number, numberSID string) error {
	_, err := s.repo.UpdateFieldsByID(ctx, practiceID, map[string]any{
		"twilio_number":     number,
		"twilio_number_sid": numberSID,
	})
	if db.IsUniqueViolation(err, "") {
		return errors.Wrap(errors.CodeConflict, err, "phone number already assigned to another practice")
	}
	return err
}

// ApplyEntitlementByUserID writes entitlement fields for the given user.
// Returns the number of rows updated; zero means no matching practice.
func (s *Service) ApplyEntitlementByUserID(ctx context.Context, userID string, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	return s.repo.UpdateFieldsByUserID(ctx, userID, fields)
}

// ApplyEntitlementByCustomerID writes entitlement fields keyed by the Stripe
// customer. Returns the number of rows updated.
func (s *Service) ApplyEntitlementByCustomerID(ctx context.Context, customerID string, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	return s.repo.UpdateFieldsByStripeCustomerID(ctx, customerID, fields)
}

// expireTrialIfDue flips a lapsed trial to expired the first time the row is
// read after trial_ends_at.
func (s *Service) expireTrialIfDue(ctx context.Context, practice *models.Practice) (*models.Practice, error) {
	if practice.SubscriptionPlan != enums.SubscriptionPlanTrial {
		return practice, nil
	}
	if practice.TrialEndsAt == nil || s.now().UTC().Before(*practice.TrialEndsAt) {
		return practice, nil
	}

	fields := map[string]any{
		"subscription_plan":   enums.SubscriptionPlanExpired,
		"subscription_status": enums.SubscriptionStatusExpired,
		"calls_limit":         nil,
	}
	if _, err := s.repo.UpdateFieldsByID(ctx, practice.ID, fields); err != nil {
		return nil, err
	}

	ctx = s.logger.WithPracticeID(ctx, practice.ID.String())
	s.logger.Info(ctx, "trial expired")

	practice.SubscriptionPlan = enums.SubscriptionPlanExpired
	practice.SubscriptionStatus = enums.SubscriptionStatusExpired
	practice.CallsLimit = nil
	return practice, nil
}
