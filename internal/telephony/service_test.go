package telephony

import (
	"context"
	stdErrors "errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

type stubPracticeStore struct {
	practice *models.Practice
	findErr  error
	saved    []string
}

func (s *stubPracticeStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Practice, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.practice, nil
}

func (s *stubPracticeStore) SetTwilioNumber(ctx context.Context, practiceID uuid.UUID, number, numberSID string) error {
	s.saved = append(s.saved, number+"|"+numberSID)
	return nil
}

type stubTwilioClient struct {
	available   []AvailableNumber
	searchErr   error
	purchased   *PurchasedNumber
	purchaseErr error
	lastSearch  string
	lastReq     PurchaseRequest
}

func (s *stubTwilioClient) SearchLocal(country string, limit int) ([]AvailableNumber, error) {
	s.lastSearch = country
	return s.available, s.searchErr
}

func (s *stubTwilioClient) Purchase(req PurchaseRequest) (*PurchasedNumber, error) {
	s.lastReq = req
	if s.purchaseErr != nil {
		return nil, s.purchaseErr
	}
	if s.purchased == nil {
		return &PurchasedNumber{SID: "PN123", PhoneNumber: req.PhoneNumber}, nil
	}
	return s.purchased, nil
}

func newTestService(t *testing.T, store *stubPracticeStore, client *stubTwilioClient) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Practices:     store,
		Twilio:        client,
		Country:       "GB",
		VoiceAgentURL: "https://agent.tabletalk.example",
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestProvisionBuysAndBindsNumber(t *testing.T) {
	practiceID := uuid.New()
	store := &stubPracticeStore{practice: &models.Practice{ID: practiceID, Name: "Trattoria Roma"}}
	client := &stubTwilioClient{available: []AvailableNumber{{PhoneNumber: "+447700900123"}}}
	svc := newTestService(t, store, client)

	result, err := svc.Provision(context.Background(), practiceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PhoneNumber != "+447700900123" || result.TwilioSID != "PN123" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.AlreadyExisted {
		t.Fatalf("fresh provision must not report existing")
	}
	if client.lastSearch != "GB" {
		t.Fatalf("expected GB search, got %q", client.lastSearch)
	}
	if client.lastReq.VoiceMethod != "POST" {
		t.Fatalf("voice method must be POST, got %q", client.lastReq.VoiceMethod)
	}
	wantURL := "https://agent.tabletalk.example/incoming-call?practice_id=" + practiceID.String()
	if client.lastReq.VoiceURL != wantURL {
		t.Fatalf("unexpected voice url %q", client.lastReq.VoiceURL)
	}
	if client.lastReq.FriendlyName != "Trattoria Roma - Voice AI" {
		t.Fatalf("unexpected friendly name %q", client.lastReq.FriendlyName)
	}
	if len(store.saved) != 1 || !strings.HasPrefix(store.saved[0], "+447700900123|") {
		t.Fatalf("number not persisted: %v", store.saved)
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	number := "+447700900999"
	sid := "PN999"
	store := &stubPracticeStore{practice: &models.Practice{
		ID:              uuid.New(),
		Name:            "Trattoria",
		TwilioNumber:    &number,
		TwilioNumberSID: &sid,
	}}
	client := &stubTwilioClient{}
	svc := newTestService(t, store, client)

	result, err := svc.Provision(context.Background(), store.practice.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.AlreadyExisted {
		t.Fatalf("expected existing number")
	}
	if result.PhoneNumber != number || result.TwilioSID != sid {
		t.Fatalf("unexpected result: %+v", result)
	}
	if client.lastSearch != "" {
		t.Fatalf("no search expected for existing number")
	}
	if len(store.saved) != 0 {
		t.Fatalf("no write expected for existing number")
	}
}

func TestProvisionNoNumbersAvailable(t *testing.T) {
	store := &stubPracticeStore{practice: &models.Practice{ID: uuid.New(), Name: "T"}}
	svc := newTestService(t, store, &stubTwilioClient{})

	_, err := svc.Provision(context.Background(), store.practice.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestProvisionTranslatesTwilioCodes(t *testing.T) {
	cases := []struct {
		twilioCode int
		wantCode   pkgerrors.Code
	}{
		{21422, pkgerrors.CodeValidation},
		{20003, pkgerrors.CodeUnauthorized},
		{99999, pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		store := &stubPracticeStore{practice: &models.Practice{ID: uuid.New(), Name: "T"}}
		client := &stubTwilioClient{
			available:   []AvailableNumber{{PhoneNumber: "+447700900123"}},
			purchaseErr: &twilioclient.TwilioRestError{Code: tc.twilioCode, Message: "twilio error"},
		}
		svc := newTestService(t, store, client)

		_, err := svc.Provision(context.Background(), store.practice.ID)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != tc.wantCode {
			t.Fatalf("twilio code %d: expected %s, got %v", tc.twilioCode, tc.wantCode, err)
		}
	}
}

func TestProvisionPlainErrorIsDependency(t *testing.T) {
	store := &stubPracticeStore{practice: &models.Practice{ID: uuid.New(), Name: "T"}}
	client := &stubTwilioClient{searchErr: stdErrors.New("network down")}
	svc := newTestService(t, store, client)

	_, err := svc.Provision(context.Background(), store.practice.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNumberStatus(t *testing.T) {
	number := "+447700900555"
	store := &stubPracticeStore{practice: &models.Practice{ID: uuid.New(), TwilioNumber: &number}}
	svc := newTestService(t, store, &stubTwilioClient{})

	got, err := svc.NumberStatus(context.Background(), store.practice.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != number {
		t.Fatalf("unexpected number %v", got)
	}
}
