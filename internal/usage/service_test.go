package usage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
)

type stubCallCounter struct {
	count    int64
	lastFrom time.Time
	lastTo   time.Time
}

func (s *stubCallCounter) CountBetween(ctx context.Context, practiceID uuid.UUID, from, to time.Time) (int64, error) {
	s.lastFrom = from
	s.lastTo = to
	return s.count, nil
}

type stubReservationCounter struct {
	count int64
}

func (s *stubReservationCounter) CountActiveBetween(ctx context.Context, practiceID uuid.UUID, from, to time.Time) (int64, error) {
	return s.count, nil
}

func newTestService(t *testing.T, calls *stubCallCounter, reservations *stubReservationCounter, now time.Time) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Calls:        calls,
		Reservations: reservations,
		Now:          func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestMonthlySummaryWindowIsCalendarMonth(t *testing.T) {
	calls := &stubCallCounter{count: 12}
	now := time.Date(2026, 2, 14, 18, 30, 0, 0, time.UTC)
	svc := newTestService(t, calls, &stubReservationCounter{count: 7}, now)
	practice := &models.Practice{ID: uuid.New()}

	summary, err := svc.MonthlySummary(context.Background(), practice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !calls.lastFrom.Equal(wantStart) || !calls.lastTo.Equal(wantEnd) {
		t.Fatalf("wrong window: [%s, %s)", calls.lastFrom, calls.lastTo)
	}
	if summary.CallsUsed != 12 || summary.Reservations != 7 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if !summary.PeriodStart.Equal(wantStart) || !summary.PeriodEnd.Equal(wantEnd) {
		t.Fatalf("unexpected period: %+v", summary)
	}
}

func TestMonthlySummaryDecemberRollsIntoNewYear(t *testing.T) {
	calls := &stubCallCounter{count: 3}
	now := time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)
	svc := newTestService(t, calls, &stubReservationCounter{}, now)
	practice := &models.Practice{ID: uuid.New()}

	summary, err := svc.MonthlySummary(context.Background(), practice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantEnd := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if !summary.PeriodEnd.Equal(wantEnd) {
		t.Fatalf("expected window to end %s, got %s", wantEnd, summary.PeriodEnd)
	}
}
