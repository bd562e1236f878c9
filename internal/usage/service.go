package usage

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
)

// CallCounter counts calls started in a half-open time range.
type CallCounter interface {
	CountBetween(ctx context.Context, practiceID uuid.UUID, from, to time.Time) (int64, error)
}

// ReservationCounter counts confirmed/completed reservations in a half-open
// date range.
type ReservationCounter interface {
	CountActiveBetween(ctx context.Context, practiceID uuid.UUID, from, to time.Time) (int64, error)
}

// Summary reports a practice's consumption for the current calendar month.
// Quota enforcement is the caller's concern; the counter only counts.
type Summary struct {
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	CallsUsed    int64     `json:"calls_used"`
	Reservations int64     `json:"reservations"`
}

// ServiceParams groups dependencies for the usage service.
type ServiceParams struct {
	Calls        CallCounter
	Reservations ReservationCounter
	Now          func() time.Time
}

// Service computes monthly usage for a practice.
type Service struct {
	calls        CallCounter
	reservations ReservationCounter
	now          func() time.Time
}

// NewService builds a usage service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Calls == nil {
		return nil, stdErrors.New("call counter is required")
	}
	if params.Reservations == nil {
		return nil, stdErrors.New("reservation counter is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		calls:        params.Calls,
		reservations: params.Reservations,
		now:          now,
	}, nil
}

// MonthlySummary counts the practice's calls and active reservations for the
// current calendar month.
func (s *Service) MonthlySummary(ctx context.Context, practice *models.Practice) (*Summary, error) {
	if practice == nil {
		return nil, stdErrors.New("practice is required")
	}

	start, end := monthWindow(s.now().UTC())

	callsUsed, err := s.calls.CountBetween(ctx, practice.ID, start, end)
	if err != nil {
		return nil, err
	}
	reservations, err := s.reservations.CountActiveBetween(ctx, practice.ID, start, end)
	if err != nil {
		return nil, err
	}

	return &Summary{
		PeriodStart:  start,
		PeriodEnd:    end,
		CallsUsed:    callsUsed,
		Reservations: reservations,
	}, nil
}

// monthWindow returns the half-open [start of month, start of next month).
func monthWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return start, end
}
