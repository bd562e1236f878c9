package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/api/middleware"
	telephonysvc "github.com/tabletalk-ai/tabletalk-backend/internal/telephony"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
)

type stubProvisionService struct {
	result     *telephonysvc.ProvisionResult
	number     *string
	err        error
	lastCalled uuid.UUID
}

func (s *stubProvisionService) Provision(ctx context.Context, practiceID uuid.UUID) (*telephonysvc.ProvisionResult, error) {
	s.lastCalled = practiceID
	return s.result, s.err
}

func (s *stubProvisionService) NumberStatus(ctx context.Context, practiceID uuid.UUID) (*string, error) {
	s.lastCalled = practiceID
	return s.number, s.err
}

type stubPracticeReader struct {
	practice *models.Practice
	err      error
}

func (s *stubPracticeReader) FindByUserID(ctx context.Context, userID string) (*models.Practice, error) {
	return s.practice, s.err
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.WithUserID(req.Context(), "user_2x7b"))
}

func TestProvisionCreatesNumber(t *testing.T) {
	practice := &models.Practice{ID: uuid.New(), Name: "Trattoria Bella"}
	svc := &stubProvisionService{result: &telephonysvc.ProvisionResult{
		PhoneNumber: "+441632960000",
		TwilioSID:   "PN123",
	}}
	handler := Provision(svc, &stubPracticeReader{practice: practice}, nil)

	req := authedRequest(http.MethodPost, "/api/v1/telephony/provision")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastCalled != practice.ID {
		t.Fatalf("provisioned wrong practice %s", svc.lastCalled)
	}

	var envelope struct {
		Data provisionResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PhoneNumber != "+441632960000" || envelope.Data.AlreadyExisted {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestProvisionIdempotentReturns200(t *testing.T) {
	practice := &models.Practice{ID: uuid.New(), Name: "Trattoria Bella"}
	svc := &stubProvisionService{result: &telephonysvc.ProvisionResult{
		PhoneNumber:    "+441632960000",
		AlreadyExisted: true,
	}}
	handler := Provision(svc, &stubPracticeReader{practice: practice}, nil)

	req := authedRequest(http.MethodPost, "/api/v1/telephony/provision")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing number got %d", rec.Code)
	}
}

func TestProvisionUnavailableWithoutService(t *testing.T) {
	handler := Provision(nil, &stubPracticeReader{}, nil)

	req := authedRequest(http.MethodPost, "/api/v1/telephony/provision")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestProvisionDependencyFailure(t *testing.T) {
	practice := &models.Practice{ID: uuid.New()}
	svc := &stubProvisionService{err: pkgerrors.New(pkgerrors.CodeDependency, "no available GB phone numbers")}
	handler := Provision(svc, &stubPracticeReader{practice: practice}, nil)

	req := authedRequest(http.MethodPost, "/api/v1/telephony/provision")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}
}

func TestNumberStatus(t *testing.T) {
	practice := &models.Practice{ID: uuid.New()}
	number := "+441632960000"
	svc := &stubProvisionService{number: &number}
	handler := NumberStatus(svc, &stubPracticeReader{practice: practice}, nil)

	req := authedRequest(http.MethodGet, "/api/v1/telephony/number")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data numberStatusResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Provisioned || envelope.Data.PhoneNumber == nil {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestNumberStatusEmpty(t *testing.T) {
	practice := &models.Practice{ID: uuid.New()}
	svc := &stubProvisionService{}
	handler := NumberStatus(svc, &stubPracticeReader{practice: practice}, nil)

	req := authedRequest(http.MethodGet, "/api/v1/telephony/number")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data numberStatusResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Provisioned {
		t.Fatalf("no number bound, must not report provisioned")
	}
}
