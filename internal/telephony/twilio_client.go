package telephony

import (
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	pkgtwilio "github.com/tabletalk-ai/tabletalk-backend/pkg/twilio"
)

// AvailableNumber is one purchasable phone number returned by a search.
type AvailableNumber struct {
	PhoneNumber string
}

// PurchasedNumber is the provider record created when a number is bought.
type PurchasedNumber struct {
	SID         string
	PhoneNumber string
}

// PurchaseRequest configures the incoming phone number to create.
type PurchaseRequest struct {
	PhoneNumber  string
	VoiceURL     string
	VoiceMethod  string
	FriendlyName string
}

// TwilioNumberClient exposes the subset of Twilio operations needed for
// provisioning.
type TwilioNumberClient interface {
	SearchLocal(country string, limit int) ([]AvailableNumber, error)
	Purchase(req PurchaseRequest) (*PurchasedNumber, error)
}

type twilioClientWrapper struct {
	client *pkgtwilio.Client
}

// NewTwilioNumberClient wraps the shared Twilio client so the telephony
// service can be tested.
func NewTwilioNumberClient(client *pkgtwilio.Client) TwilioNumberClient {
	if client == nil {
		return nil
	}
	return &twilioClientWrapper{client: client}
}

func (w *twilioClientWrapper) SearchLocal(country string, limit int) ([]AvailableNumber, error) {
	voiceEnabled := true
	params := &openapi.ListAvailablePhoneNumberLocalParams{}
	params.SetVoiceEnabled(voiceEnabled)
	params.SetLimit(limit)

	records, err := w.client.API().Api.ListAvailablePhoneNumberLocal(country, params)
	if err != nil {
		return nil, err
	}

	numbers := make([]AvailableNumber, 0, len(records))
	for _, record := range records {
		if record.PhoneNumber == nil {
			continue
		}
		numbers = append(numbers, AvailableNumber{PhoneNumber: *record.PhoneNumber})
	}
	return numbers, nil
}

func (w *twilioClientWrapper) Purchase(req PurchaseRequest) (*PurchasedNumber, error) {
	params := &openapi.CreateIncomingPhoneNumberParams{}
	params.SetPhoneNumber(req.PhoneNumber)
	params.SetVoiceUrl(req.VoiceURL)
	params.SetVoiceMethod(req.VoiceMethod)
	params.SetFriendlyName(req.FriendlyName)

	record, err := w.client.API().Api.CreateIncomingPhoneNumber(params)
	if err != nil {
		return nil, err
	}

	purchased := &PurchasedNumber{}
	if record.Sid != nil {
		purchased.SID = *record.Sid
	}
	if record.PhoneNumber != nil {
		purchased.PhoneNumber = *record.PhoneNumber
	}
	return purchased, nil
}
