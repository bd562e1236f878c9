package calllogs

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/api/middleware"
	"github.com/tabletalk-ai/tabletalk-backend/api/responses"
	"github.com/tabletalk-ai/tabletalk-backend/api/validators"
	calllogsvc "github.com/tabletalk-ai/tabletalk-backend/internal/calllogs"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

// CallLogService describes the call log methods used by the HTTP controllers.
type CallLogService interface {
	Record(ctx context.Context, practiceID uuid.UUID, input calllogsvc.RecordInput) (*models.CallLog, error)
	List(ctx context.Context, query calllogsvc.ListQuery) ([]models.CallLog, error)
}

type practiceReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Practice, error)
}

type recordRequest struct {
	PracticeID    string     `json:"practice_id" validate:"required"`
	CallSID       string     `json:"call_sid,omitempty"`
	CallerNumber  *string    `json:"caller_number,omitempty"`
	StartedAt     time.Time  `json:"started_at" validate:"required"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	DurationSecs  *int       `json:"duration_secs,omitempty"`
	Outcome       *string    `json:"outcome,omitempty"`
	ReservationID *string    `json:"reservation_id,omitempty"`
	Transcript    *string    `json:"transcript,omitempty"`
}

type callLogResponse struct {
	ID            uuid.UUID  `json:"id"`
	CallSID       *string    `json:"call_sid,omitempty"`
	CallerNumber  *string    `json:"caller_number,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	DurationSecs  *int       `json:"duration_secs,omitempty"`
	Outcome       *string    `json:"outcome,omitempty"`
	ReservationID *uuid.UUID `json:"reservation_id,omitempty"`
	Transcript    *string    `json:"transcript,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type callLogListResponse struct {
	Calls []callLogResponse `json:"calls"`
}

// List returns the caller's call history, newest first.
func List(svc CallLogService, practices practiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || practices == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "call log service unavailable"))
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

		list, err := svc.List(ctx, calllogsvc.ListQuery{
			PracticeID: practice.ID,
			From:       from,
			To:         to,
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]callLogResponse, 0, len(list))
		for i := range list {
			out = append(out, newCallLogResponse(&list[i]))
		}
		responses.WriteSuccess(w, callLogListResponse{Calls: out})
	}
}

// Record stores a finished call reported by the voice agent. The practice is
// addressed explicitly because the agent calls with its own credentials.
func Record(svc CallLogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "call log service unavailable"))
			return
		}

		var payload recordRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		practiceID, err := uuid.Parse(strings.TrimSpace(payload.PracticeID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid practice id"))
			return
		}

		input := calllogsvc.RecordInput{
			CallSID:      payload.CallSID,
			CallerNumber: payload.CallerNumber,
			StartedAt:    payload.StartedAt,
			EndedAt:      payload.EndedAt,
			DurationSecs: payload.DurationSecs,
			Outcome:      payload.Outcome,
			Transcript:   payload.Transcript,
		}
		if payload.ReservationID != nil {
			reservationID, err := uuid.Parse(strings.TrimSpace(*payload.ReservationID))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid reservation id"))
				return
			}
			input.ReservationID = &reservationID
		}

		log, err := svc.Record(ctx, practiceID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCallLogResponse(log))
	}
}

func newCallLogResponse(log *models.CallLog) callLogResponse {
	return callLogResponse{
		ID:            log.ID,
		CallSID:       log.CallSID,
		CallerNumber:  log.CallerNumber,
		StartedAt:     log.StartedAt,
		EndedAt:       log.EndedAt,
		DurationSecs:  log.DurationSecs,
		Outcome:       log.Outcome,
		ReservationID: log.ReservationID,
		Transcript:    log.Transcript,
		CreatedAt:     log.CreatedAt,
	}
}
