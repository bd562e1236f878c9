package reservations

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/enums"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

// CreateInput carries a new booking.
type CreateInput struct {
	GuestName  string
	GuestPhone *string
	PartySize  int
	Date       time.Time
	Time       string
	Notes      *string
	Source     string
}

// UpdateInput carries a partial booking update.
type UpdateInput struct {
	GuestName  *string
	GuestPhone *string
	PartySize  *int
	Date       *time.Time
	Time       *string
	Notes      *string
	Status     *enums.ReservationStatus
}

// ServiceParams groups dependencies for the reservation service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service owns reservation lifecycle for a practice.
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService builds a reservation service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, stdErrors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	return &Service{repo: params.Repo, logger: params.Logger}, nil
}

// Create books a table for the practice.
func (s *Service) Create(ctx context.Context, practiceID uuid.UUID, input CreateInput) (*models.Reservation, error) {
	if strings.TrimSpace(input.GuestName) == "" {
		return nil, errors.New(errors.CodeValidation, "guest name is required")
	}
	if input.PartySize <= 0 {
		return nil, errors.New(errors.CodeValidation, "party size must be positive")
	}
	if strings.TrimSpace(input.Time) == "" {
		return nil, errors.New(errors.CodeValidation, "time is required")
	}
	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "phone"
	}

	reservation := &models.Reservation{
		PracticeID: practiceID,
		GuestName:  strings.TrimSpace(input.GuestName),
		GuestPhone: input.GuestPhone,
		PartySize:  input.PartySize,
		Date:       input.Date,
		Time:       input.Time,
		Status:     enums.ReservationStatusPending,
		Notes:      input.Notes,
		Source:     source,
	}
	if err := s.repo.Create(ctx, reservation); err != nil {
		return nil, err
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"practice_id":    practiceID.String(),
		"reservation_id": reservation.ID.String(),
	})
	s.logger.Info(ctx, "reservation created")

	return reservation, nil
}

// Get loads one reservation scoped to the practice.
func (s *Service) Get(ctx context.Context, practiceID, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, errors.New(errors.CodeNotFound, "reservation not found")
	}
	return reservation, nil
}

// List returns the practice's reservations matching the query.
func (s *Service) List(ctx context.Context, query ListQuery) ([]models.Reservation, error) {
	return s.repo.List(ctx, query)
}

// Update applies a partial update to a reservation.
func (s *Service) Update(ctx context.Context, practiceID, id uuid.UUID, input UpdateInput) (*models.Reservation, error) {
	reservation, err := s.Get(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}

	if input.GuestName != nil {
		if strings.TrimSpace(*input.GuestName) == "" {
			return nil, errors.New(errors.CodeValidation, "guest name cannot be empty")
		}
		reservation.GuestName = strings.TrimSpace(*input.GuestName)
	}
	if input.GuestPhone != nil {
		reservation.GuestPhone = input.GuestPhone
	}
	if input.PartySize != nil {
		if *input.PartySize <= 0 {
			return nil, errors.New(errors.CodeValidation, "party size must be positive")
		}
		reservation.PartySize = *input.PartySize
	}
	if input.Date != nil {
		reservation.Date = *input.Date
	}
	if input.Time != nil {
		if strings.TrimSpace(*input.Time) == "" {
			return nil, errors.New(errors.CodeValidation, "time cannot be empty")
		}
		reservation.Time = *input.Time
	}
	if input.Notes != nil {
		reservation.Notes = input.Notes
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, errors.New(errors.CodeValidation, "invalid reservation status")
		}
		reservation.Status = *input.Status
	}

	if err := s.repo.Update(ctx, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// UpdateStatus moves a reservation to the given lifecycle state.
func (s *Service) UpdateStatus(ctx context.Context, practiceID, id uuid.UUID, status enums.ReservationStatus) (*models.Reservation, error) {
	return s.Update(ctx, practiceID, id, UpdateInput{Status: &status})
}

// Delete removes a reservation scoped to the practice.
func (s *Service) Delete(ctx context.Context, practiceID, id uuid.UUID) error {
	rows, err := s.repo.Delete(ctx, practiceID, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.New(errors.CodeNotFound, "reservation not found")
	}
	return nil
}
