package calllogs

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

// RecordInput carries one finished call reported by the voice agent.
type RecordInput struct {
	CallSID       string
	CallerNumber  *string
	StartedAt     time.Time
	EndedAt       *time.Time
	DurationSecs  *int
	Outcome       *string
	ReservationID *uuid.UUID
	Transcript    *string
}

// ServiceParams groups dependencies for the call log service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service records and lists calls handled by the voice agent.
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService builds a call log service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, stdErrors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	return &Service{repo: params.Repo, logger: params.Logger}, nil
}

// Record stores one call. Redelivery of the same call SID returns the stored
// row instead of a duplicate.
func (s *Service) Record(ctx context.Context, practiceID uuid.UUID, input RecordInput) (*models.CallLog, error) {
	if input.StartedAt.IsZero() {
		return nil, errors.New(errors.CodeValidation, "started_at is required")
	}

	callSID := strings.TrimSpace(input.CallSID)
	if callSID != "" {
		existing, err := s.repo.FindByCallSID(ctx, callSID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	log := &models.CallLog{
		PracticeID:    practiceID,
		CallerNumber:  input.CallerNumber,
		StartedAt:     input.StartedAt,
		EndedAt:       input.EndedAt,
		DurationSecs:  input.DurationSecs,
		Outcome:       input.Outcome,
		ReservationID: input.ReservationID,
		Transcript:    input.Transcript,
	}
	if callSID != "" {
		log.CallSID = &callSID
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return nil, err
	}

	ctx = s.logger.WithPracticeID(ctx, practiceID.String())
	s.logger.Info(ctx, "call recorded")

	return log, nil
}

// List returns the practice's call history matching the query.
func (s *Service) List(ctx context.Context, query ListQuery) ([]models.CallLog, error) {
	return s.repo.List(ctx, query)
}
