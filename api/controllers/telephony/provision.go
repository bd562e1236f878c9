package telephony

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/api/middleware"
	"github.com/tabletalk-ai/tabletalk-backend/api/responses"
	telephonysvc "github.com/tabletalk-ai/tabletalk-backend/internal/telephony"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

// ProvisionService describes the telephony methods used by the HTTP
// controllers.
type ProvisionService interface {
	Provision(ctx context.Context, practiceID uuid.UUID) (*telephonysvc.ProvisionResult, error)
	NumberStatus(ctx context.Context, practiceID uuid.UUID) (*string, error)
}

type practiceReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Practice, error)
}

type provisionResponse struct {
	PhoneNumber    string `json:"phone_number"`
	TwilioSID      string `json:"twilio_sid,omitempty"`
	AlreadyExisted bool   `json:"already_existed"`
}

type numberStatusResponse struct {
	PhoneNumber *string `json:"phone_number"`
	Provisioned bool    `json:"provisioned"`
}

// Provision buys a voice number for the caller's practice.
func Provision(svc ProvisionService, practices practiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || practices == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "telephony service unavailable"))
			return
		}

		practice, err := practices.FindByUserID(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Provision(ctx, practice.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := provisionResponse{
			PhoneNumber:    result.PhoneNumber,
			TwilioSID:      result.TwilioSID,
			AlreadyExisted: result.AlreadyExisted,
		}
		if result.AlreadyExisted {
			responses.WriteSuccess(w, resp)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// NumberStatus reports whether the caller's practice has a number bound.
func NumberStatus(svc ProvisionService, practices practiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || practices == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "telephony service unavailable"))
			return
		}

		practice, err := practices.FindByUserID(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		number, err := svc.NumberStatus(ctx, practice.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, numberStatusResponse{
			PhoneNumber: number,
			Provisioned: number != nil && *number != "",
		})
	}
}
