package chief

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medsoft/medsoft/internal/platform/fhir"
)

func newTestHandler() (*Handler, *mockRepo, *fakePublisher) {
	svc, repo, pub := newTestService()
	return NewHandler(svc), repo, pub
}

func newTestServer() (*echo.Echo, *mockRepo, *fakePublisher) {
	h, repo, pub := newTestHandler()
	e := echo.New()
	h.RegisterRoutes(e)
	return e, repo, pub
}

func TestHandler_RegisterPatient(t *testing.T) {
	h, repo, pub := newTestHandler()
	e := echo.New()

	body := `{"patient_id":42,"first_name":"John","last_name":"Doe","dob":"1980-05-15","hl7_raw":"MSH|x\r"}`
	req := httptest.NewRequest(http.MethodPost, "/api/register-patient", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.RegisterPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "success" || resp["patient_id"] != float64(1) {
		t.Errorf("unexpected response: %v", resp)
	}
	if len(repo.patients) != 1 || len(repo.messages) != 1 || pub.count() != 1 {
		t.Error("expected patient stored, hl7 logged and list published")
	}
}

func TestHandler_RegisterPatientValidation(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/register-patient", strings.NewReader(`{"first_name":"John"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.RegisterPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_RegisterPatientBadJSON(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/register-patient", strings.NewReader(`{`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.RegisterPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestHandler_CreateFHIRPatient(t *testing.T) {
	e, repo, pub := newTestServer()

	raw, _ := fhir.NewPatient("Jane", "Roe", "1975-12-01").Marshal()
	req := httptest.NewRequest(http.MethodPost, "/fhir/Patient", strings.NewReader(string(raw)))
	req.Header.Set(echo.HeaderContentType, "application/fhir+json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "created" || resp["id"] == "" {
		t.Errorf("unexpected response: %v", resp)
	}
	if len(repo.patients) != 1 || repo.patients[0].FHIRID != resp["id"] {
		t.Error("expected patient stored under the resource id")
	}
	if pub.count() != 1 {
		t.Errorf("expected 1 publish, got %d", pub.count())
	}
}

func TestHandler_CreateFHIRPatientUnsupportedMediaType(t *testing.T) {
	e, repo, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/fhir/Patient", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, "text/plain")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", rec.Code)
	}
	if len(repo.messages) != 0 {
		t.Error("expected rejected body not to be stored")
	}
}

func TestHandler_CreateFHIRPatientInvalid(t *testing.T) {
	e, repo, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/fhir/Patient", strings.NewReader(`{"resourceType":"Observation"}`))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var outcome fhir.OperationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("expected OperationOutcome body: %v", err)
	}
	if outcome.ResourceType != "OperationOutcome" || len(outcome.Issue) != 1 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if len(repo.patients) != 0 {
		t.Error("expected no patient stored")
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	e, repo, pub := newTestServer()
	repo.Create(context.Background(), &Patient{FirstName: "Ann", LastName: "Lee", DOB: "1990-01-01"})

	req := httptest.NewRequest(http.MethodDelete, "/api/patient/1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["ok"] != true || resp["deleted_id"] != float64(1) {
		t.Errorf("unexpected response: %v", resp)
	}
	if pub.count() != 1 {
		t.Errorf("expected 1 publish, got %d", pub.count())
	}
}

func TestHandler_DeletePatientNotFound(t *testing.T) {
	e, _, pub := newTestServer()

	req := httptest.NewRequest(http.MethodDelete, "/api/patient/99", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if pub.count() != 0 {
		t.Error("expected no publish for a missing patient")
	}
}

func TestHandler_DeletePatientBadID(t *testing.T) {
	e, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodDelete, "/api/patient/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_ListPatients(t *testing.T) {
	e, repo, _ := newTestServer()
	for _, name := range []string{"A", "B"} {
		repo.Create(context.Background(), &Patient{FirstName: name, LastName: "X", DOB: "2000-01-01"})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 2 || list[0]["first_name"] != "B" {
		t.Errorf("unexpected list: %v", list)
	}
}

func TestHandler_LastFHIR(t *testing.T) {
	e, repo, _ := newTestServer()
	repo.SaveMessage(context.Background(), &Message{Kind: KindFHIR, Raw: `{"resourceType":"Patient"}`})
	repo.SaveMessage(context.Background(), &Message{Kind: KindHL7, Raw: "MSH"})

	req := httptest.NewRequest(http.MethodGet, "/api/fhir/last?n=3", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var msgs []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &msgs)
	if len(msgs) != 1 || msgs[0]["raw"] != `{"resourceType":"Patient"}` {
		t.Errorf("unexpected messages: %v", msgs)
	}
}

func TestHandler_RootAndHealth(t *testing.T) {
	e, _, _ := newTestServer()

	for _, path := range []string{"/", "/health", "/api/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["service"] != "Hospital Chief Server" {
		t.Errorf("unexpected descriptor: %v", resp)
	}
}
