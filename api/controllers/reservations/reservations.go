package reservations

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/api/middleware"
	"github.com/tabletalk-ai/tabletalk-backend/api/responses"
	"github.com/tabletalk-ai/tabletalk-backend/api/validators"
	reservationsvc "github.com/tabletalk-ai/tabletalk-backend/internal/reservations"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/enums"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// ReservationService describes the reservation methods used by the HTTP
// controllers.
type ReservationService interface {
	Create(ctx context.Context, practiceID uuid.UUID, input reservationsvc.CreateInput) (*models.Reservation, error)
	Get(ctx context.Context, practiceID, id uuid.UUID) (*models.Reservation, error)
	List(ctx context.Context, query reservationsvc.ListQuery) ([]models.Reservation, error)
	Update(ctx context.Context, practiceID, id uuid.UUID, input reservationsvc.UpdateInput) (*models.Reservation, error)
	Delete(ctx context.Context, practiceID, id uuid.UUID) error
}

type practiceReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Practice, error)
}

type createRequest struct {
	GuestName  string  `json:"guest_name" validate:"required"`
	GuestPhone *string `json:"guest_phone,omitempty"`
	PartySize  int     `json:"party_size" validate:"required,min=1"`
	Date       string  `json:"date" validate:"required"`
	Time       string  `json:"time" validate:"required"`
	Notes      *string `json:"notes,omitempty"`
	Source     string  `json:"source,omitempty"`
}

type updateRequest struct {
	GuestName  *string `json:"guest_name,omitempty"`
	GuestPhone *string `json:"guest_phone,omitempty"`
	PartySize  *int    `json:"party_size,omitempty"`
	Date       *string `json:"date,omitempty"`
	Time       *string `json:"time,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	Status     *string `json:"status,omitempty"`
}

type reservationResponse struct {
	ID         uuid.UUID `json:"id"`
	GuestName  string    `json:"guest_name"`
	GuestPhone *string   `json:"guest_phone,omitempty"`
	PartySize  int       `json:"party_size"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Status     string    `json:"status"`
	Notes      *string   `json:"notes,omitempty"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

type reservationListResponse struct {
	Reservations []reservationResponse `json:"reservations"`
}

// List returns the caller's reservations, optionally filtered by date range
// and status.
func List(svc ReservationService, practices practiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || practices == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		practice, err := practices.FindByUserID(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		from, err := validators.ParseQueryDate(r, "from")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "to")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		query := reservationsvc.ListQuery{
			PracticeID: practice.ID,
			DateFrom:   from,
			DateTo:     to,
			Limit:      limit,
			Offset:     offset,
		}
		if statusParam := strings.TrimSpace(r.URL.Query().Get("status")); statusParam != "" {
			status, err := enums.ParseReservationStatus(statusParam)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			query.Status = &status
		}

		list, err := svc.List(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]reservationResponse, 0, len(list))
		for i := range list {
			out = append(out, newReservationResponse(&list[i]))
		}
		responses.WriteSuccess(w, reservationListResponse{Reservations: out})
	}
}

// Create books a table for the caller's practice.
func Create(svc ReservationService, practices practiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || practices == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		practice, err := practices.FindByUserID(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		date, err := time.Parse(dateLayout, payload.Date)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD"))
			return
		}

		reservation, err := svc.Create(ctx, practice.ID, reservationsvc.CreateInput{
			GuestName:  payload.GuestName,
			GuestPhone: payload.GuestPhone,
			PartySize:  payload.PartySize,
			Date:       date,
			Time:       payload.Time,
			Notes:      payload.Notes,
			Source:     payload.Source,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReservationResponse(reservation))
	}
}

// Detail loads one reservation belonging to the caller's practice.
func Detail(svc ReservationService, practices practiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || practices == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		practice, reservationID, err := resolveScope(r, practices)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		reservation, err := svc.Get(ctx, practice.ID, reservationID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReservationResponse(reservation))
	}
}

// Update applies a partial update to a reservation.
func Update(svc ReservationService, practices practiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || practices == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		practice, reservationID, err := resolveScope(r, practices)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload updateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := reservationsvc.UpdateInput{
			GuestName:  payload.GuestName,
			GuestPhone: payload.GuestPhone,
			PartySize:  payload.PartySize,
			Time:       payload.Time,
			Notes:      payload.Notes,
		}
		if payload.Date != nil {
			date, err := time.Parse(dateLayout, *payload.Date)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD"))
				return
			}
			input.Date = &date
		}
		if payload.Status != nil {
			status, err := enums.ParseReservationStatus(*payload.Status)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Status = &status
		}

		reservation, err := svc.Update(ctx, practice.ID, reservationID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReservationResponse(reservation))
	}
}

// Delete removes a reservation belonging to the caller's practice.
func Delete(svc ReservationService, practices practiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || practices == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		practice, reservationID, err := resolveScope(r, practices)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Delete(ctx, practice.ID, reservationID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func resolveScope(r *http.Request, practices practiceReader) (*models.Practice, uuid.UUID, error) {
	practice, err := practices.FindByUserID(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return nil, uuid.Nil, err
	}

	raw := strings.TrimSpace(chi.URLParam(r, "reservationId"))
	reservationID, err := uuid.Parse(raw)
	if err != nil {
		return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid reservation id")
	}
	return practice, reservationID, nil
}

func newReservationResponse(reservation *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:         reservation.ID,
		GuestName:  reservation.GuestName,
		GuestPhone: reservation.GuestPhone,
		PartySize:  reservation.PartySize,
		Date:       reservation.Date.Format(dateLayout),
		Time:       reservation.Time,
		Status:     string(reservation.Status),
		Notes:      reservation.Notes,
		Source:     reservation.Source,
		CreatedAt:  reservation.CreatedAt,
	}
}
