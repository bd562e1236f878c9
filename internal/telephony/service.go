package telephony

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

// Twilio REST error codes this service translates for callers.
const (
	twilioCodeNumberUnavailable = 21422
	twilioCodeAuthFailed        = 20003
)

const searchBatchSize = 5

// PracticeStore is the persistence surface the telephony service needs.
type PracticeStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Practice, error)
	SetTwilioNumber(ctx context.Context, practiceID uuid.UUID, number, numberSID string) error
}

// ProvisionResult reports the number bound to a practice.
type ProvisionResult struct {
	PhoneNumber    string
	TwilioSID      string
	AlreadyExisted bool
}

// ServiceParams groups dependencies for the telephony service.
type ServiceParams struct {
	Practices     PracticeStore
	Twilio        TwilioNumberClient
	Country       string
	VoiceAgentURL string
	Logger        *logger.Logger
}

// Service provisions inbound phone numbers and binds them to practices.
type Service struct {
	practices     PracticeStore
	twilio        TwilioNumberClient
	country       string
	voiceAgentURL string
	logger        *logger.Logger
}

// NewService builds a telephony service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Practices == nil {
		return nil, stdErrors.New("practice store is required")
	}
	if params.Twilio == nil {
		return nil, stdErrors.New("twilio client is required")
	}
	if strings.TrimSpace(params.VoiceAgentURL) == "" {
		return nil, stdErrors.New("voice agent url is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	country := strings.ToUpper(strings.TrimSpace(params.Country))
	if country == "" {
		country = "GB"
	}
	return &Service{
		practices:     params.Practices,
		twilio:        params.Twilio,
		country:       country,
		voiceAgentURL: strings.TrimRight(params.VoiceAgentURL, "/"),
		logger:        params.Logger,
	}, nil
}

// Provision buys a voice-enabled number for the practice and points it at
// the voice agent. A practice that already has a number gets it back
// unchanged, so retries are safe.
func (s *Service) Provision(ctx context.Context, practiceID uuid.UUID) (*ProvisionResult, error) {
	practice, err := s.practices.FindByID(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	if practice.TwilioNumber != nil && *practice.TwilioNumber != "" {
		result := &ProvisionResult{
			PhoneNumber:    *practice.TwilioNumber,
			AlreadyExisted: true,
		}
		if practice.TwilioNumberSID != nil {
			result.TwilioSID = *practice.TwilioNumberSID
		}
		return result, nil
	}

	available, err := s.twilio.SearchLocal(s.country, searchBatchSize)
	if err != nil {
		return nil, translateTwilioError(err, "searching available numbers")
	}
	if len(available) == 0 {
		return nil, errors.New(errors.CodeDependency, fmt.Sprintf("no available %s phone numbers", s.country))
	}

	selected := available[0].PhoneNumber
	purchased, err := s.twilio.Purchase(PurchaseRequest{
		PhoneNumber:  selected,
		VoiceURL:     s.voiceURLFor(practiceID),
		VoiceMethod:  "POST",
		FriendlyName: fmt.Sprintf("%s - Voice AI", practice.Name),
	})
	if err != nil {
		return nil, translateTwilioError(err, "purchasing phone number")
	}

	if err := s.practices.SetTwilioNumber(ctx, practiceID, selected, purchased.SID); err != nil {
		return nil, fmt.Errorf("persisting twilio number: %w", err)
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"practice_id":  practiceID.String(),
		"phone_number": selected,
	})
	s.logger.Info(ctx, "phone number provisioned")

	return &ProvisionResult{PhoneNumber: selected, TwilioSID: purchased.SID}, nil
}

// NumberStatus returns the number currently bound to the practice, if any.
func (s *Service) NumberStatus(ctx context.Context, practiceID uuid.UUID) (*string, error) {
	practice, err := s.practices.FindByID(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	return practice.TwilioNumber, nil
}

func (s *Service) voiceURLFor(practiceID uuid.UUID) string {
	return fmt.Sprintf("%s/incoming-call?practice_id=%s", s.voiceAgentURL, url.QueryEscape(practiceID.String()))
}

func translateTwilioError(err error, action string) error {
	var restErr *twilioclient.TwilioRestError
	if stdErrors.As(err, &restErr) {
		switch restErr.Code {
		case twilioCodeNumberUnavailable:
			return errors.Wrap(errors.CodeValidation, err, "this phone number is not available")
		case twilioCodeAuthFailed:
			return errors.Wrap(errors.CodeUnauthorized, err, "authentication failed, check twilio credentials")
		}
	}
	return errors.Wrap(errors.CodeDependency, err, action)
}
