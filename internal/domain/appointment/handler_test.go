package appointment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newHandlerFixture() (*Handler, *fixture) {
	f := newFixture()
	return NewHandler(f.svc), f
}

func doJSON(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandlerCreate_Created(t *testing.T) {
	h, _ := newHandlerFixture()
	e := echo.New()

	patientID := uuid.New()
	body := `{"patient_id":"` + patientID.String() + `","scheduled_at":"2026-09-14T09:00:00Z","kind":"avaliação","value":"R$ 150,00"}`
	c, rec := doJSON(e, http.MethodPost, "/consultas", body)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["patient_id"] != patientID.String() {
		t.Errorf("unexpected patient_id %v", resp["patient_id"])
	}
	if resp["status"] != "scheduled" {
		t.Errorf("expected status scheduled, got %v", resp["status"])
	}
	if resp["id"] == "" {
		t.Error("expected an id")
	}
}

func TestHandlerCreate_Conflict(t *testing.T) {
	h, f := newHandlerFixture()
	e := echo.New()

	mustCreate(t, f, CreateInput{PatientID: uuid.New(), ScheduledAt: time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)})

	body := `{"patient_id":"` + uuid.New().String() + `","scheduled_at":"2026-09-14T09:00:00Z"}`
	c, rec := doJSON(e, http.MethodPost, "/consultas", body)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected an error message in the conflict body")
	}
}

func TestHandlerCreate_BadInput(t *testing.T) {
	h, _ := newHandlerFixture()
	e := echo.New()

	cases := []struct {
		name string
		body string
	}{
		{"bad patient id", `{"patient_id":"nope","scheduled_at":"2026-09-14T09:00:00Z"}`},
		{"bad timestamp", `{"patient_id":"` + uuid.New().String() + `","scheduled_at":"quarta de manhã"}`},
		{"bad value", `{"patient_id":"` + uuid.New().String() + `","scheduled_at":"2026-09-14T09:00:00Z","value":"abc"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := doJSON(e, http.MethodPost, "/consultas", tc.body)
			err := h.Create(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
			}
			if httpErr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", httpErr.Code)
			}
		})
	}
}

func TestHandlerCreate_UnknownPatient(t *testing.T) {
	h, f := newHandlerFixture()
	e := echo.New()

	ghost := uuid.New()
	f.dir.markMissing(ghost)

	body := `{"patient_id":"` + ghost.String() + `","scheduled_at":"2026-09-14T09:00:00Z"}`
	c, _ := doJSON(e, http.MethodPost, "/consultas", body)

	err := h.Create(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown patient, got %d", httpErr.Code)
	}
}

func TestHandlerUpdateStatus_Success(t *testing.T) {
	h, f := newHandlerFixture()
	e := echo.New()

	a := mustCreate(t, f, CreateInput{PatientID: uuid.New(), ScheduledAt: slotTime})

	c, rec := doJSON(e, http.MethodPut, "/consultas/"+a.ID.String()+"/status",
		`{"status":"cancelled","non_completion_reason":"paciente desmarcou"}`)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("expected success body, got %s", rec.Body)
	}

	stored, _ := f.repo.GetByID(c.Request().Context(), a.ID)
	if stored.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", stored.Status)
	}
}

func TestHandlerUpdateStatus_InvalidStatus(t *testing.T) {
	h, f := newHandlerFixture()
	e := echo.New()

	a := mustCreate(t, f, CreateInput{PatientID: uuid.New(), ScheduledAt: slotTime})
	c, _ := doJSON(e, http.MethodPut, "/consultas/"+a.ID.String()+"/status", `{"status":"archived"}`)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	err := h.UpdateStatus(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandlerDelete_NotFound(t *testing.T) {
	h, _ := newHandlerFixture()
	e := echo.New()

	c, _ := doJSON(e, http.MethodDelete, "/consultas/"+uuid.New().String(), "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Delete(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandlerDelete_Success(t *testing.T) {
	h, f := newHandlerFixture()
	e := echo.New()

	a := mustCreate(t, f, CreateInput{PatientID: uuid.New(), ScheduledAt: slotTime})
	c, rec := doJSON(e, http.MethodDelete, "/consultas/"+a.ID.String(), "")
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("expected success body, got %s", rec.Body)
	}
}

func TestHandlerAvailability(t *testing.T) {
	h, f := newHandlerFixture()
	e := echo.New()

	mustCreate(t, f, CreateInput{PatientID: uuid.New(), ScheduledAt: time.Date(2026, 9, 14, 14, 0, 0, 0, time.UTC)})

	c, rec := doJSON(e, http.MethodGet, "/consultas/disponibilidade/2026-09-14", "")
	c.SetParamNames("date")
	c.SetParamValues("2026-09-14")

	if err := h.Availability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Date  string   `json:"date"`
		Slots []string `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Date != "2026-09-14" {
		t.Errorf("unexpected date %s", resp.Date)
	}
	if len(resp.Slots) != 14 {
		t.Errorf("expected 14 free slots, got %d", len(resp.Slots))
	}
	for _, s := range resp.Slots {
		if s == "14:00" {
			t.Error("14:00 should be occupied")
		}
	}
}

func TestHandlerUpdate_MovesPractitionerToUnassigned(t *testing.T) {
	h, f := newHandlerFixture()
	e := echo.New()

	dentist := uuid.New()
	a := mustCreate(t, f, CreateInput{PatientID: uuid.New(), PractitionerID: &dentist, ScheduledAt: slotTime})

	c, rec := doJSON(e, http.MethodPut, "/consultas/"+a.ID.String(), `{"dentist_id":null}`)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.Update(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stored, _ := f.repo.GetByID(c.Request().Context(), a.ID)
	if stored.PractitionerID != nil {
		t.Error("expected practitioner cleared")
	}
}
