package appointment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinic-server/internal/platform/middleware"
	"github.com/clinicore/clinic-server/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/consultas", h.Create)
	api.GET("/consultas", h.List)
	api.GET("/consultas/disponibilidade/:date", h.Availability)
	api.GET("/consultas/:id", h.Get)
	api.PUT("/consultas/:id", h.Update)
	api.PUT("/consultas/:id/status", h.UpdateStatus)
	api.DELETE("/consultas/:id", h.Delete)
}

type createRequest struct {
	PatientID   string          `json:"patient_id"`
	DentistID   *string         `json:"dentist_id"`
	ScheduledAt string          `json:"scheduled_at"`
	Kind        string          `json:"kind"`
	Description *string         `json:"description"`
	Value       json.RawMessage `json:"value"`
	Procedures  []ProcedureLine `json:"procedures"`
	Materials   []MaterialLine  `json:"materials"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return badRequest("invalid patient_id")
	}
	practitionerID, err := parseOptionalUUID(req.DentistID)
	if err != nil {
		return badRequest("invalid dentist_id")
	}
	scheduledAt, err := parseWhen(req.ScheduledAt)
	if err != nil {
		return badRequest("invalid scheduled_at, expected RFC3339 or YYYY-MM-DD HH:MM")
	}

	actorID, _ := middleware.ActorID(c)
	a, err := h.svc.Create(c.Request().Context(), CreateInput{
		PatientID:      patientID,
		PractitionerID: practitionerID,
		ScheduledAt:    scheduledAt,
		Kind:           req.Kind,
		Description:    req.Description,
		Value:          moneyText(req.Value),
		Procedures:     req.Procedures,
		Materials:      req.Materials,
		ActorID:        actorID,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

type updateRequest struct {
	DentistID   json.RawMessage `json:"dentist_id"`
	ScheduledAt *string         `json:"scheduled_at"`
	Kind        *string         `json:"kind"`
	Description *string         `json:"description"`
	Value       json.RawMessage `json:"value"`
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("invalid id")
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	in := UpdateInput{Kind: req.Kind, Description: req.Description}
	if actorID, ok := middleware.ActorID(c); ok {
		in.ActorID = actorID
	}

	if req.ScheduledAt != nil {
		at, err := parseWhen(*req.ScheduledAt)
		if err != nil {
			return badRequest("invalid scheduled_at, expected RFC3339 or YYYY-MM-DD HH:MM")
		}
		in.ScheduledAt = &at
	}
	if req.Value != nil {
		v := moneyText(req.Value)
		in.Value = &v
	}
	// A present-but-null dentist_id moves the appointment to the
	// unassigned calendar; an absent key leaves it alone.
	if len(req.DentistID) > 0 {
		if string(req.DentistID) == "null" {
			in.ClearPractitioner = true
		} else {
			var raw string
			if err := json.Unmarshal(req.DentistID, &raw); err != nil {
				return badRequest("invalid dentist_id")
			}
			pid, err := uuid.Parse(raw)
			if err != nil {
				return badRequest("invalid dentist_id")
			}
			in.PractitionerID = &pid
		}
	}

	a, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status              string  `json:"status"`
	Paid                *bool   `json:"paid"`
	NonCompletionReason *string `json:"non_completion_reason"`
	NonCompletionNote   *string `json:"non_completion_note"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	actorID, _ := middleware.ActorID(c)
	err = h.svc.UpdateStatus(c.Request().Context(), id, StatusInput{
		Status:  Status(req.Status),
		Paid:    req.Paid,
		Reason:  req.NonCompletionReason,
		Note:    req.NonCompletionNote,
		ActorID: actorID,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("invalid id")
	}
	actorID, _ := middleware.ActorID(c)
	if err := h.svc.Delete(c.Request().Context(), id, actorID); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	var f ListFilter
	if raw := c.QueryParam("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return badRequest("invalid date, expected YYYY-MM-DD")
		}
		f.Date = &d
	}
	f.Status = Status(c.QueryParam("status"))
	if raw := c.QueryParam("patient_id"); raw != "" {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return badRequest("invalid patient_id")
		}
		f.PatientID = pid
	}

	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Availability(c echo.Context) error {
	date, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		return badRequest("invalid date, expected YYYY-MM-DD")
	}
	slots, err := h.svc.Availability(c.Request().Context(), date)
	if err != nil {
		return mapError(c, err)
	}
	if slots == nil {
		slots = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":  date.Format("2006-01-02"),
		"slots": slots,
	})
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// mapError translates service errors to the wire contract. Conflicts keep
// the {"error": ...} body the front-end expects.
func mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrScheduleConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": "horário já ocupado"})
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// moneyText unwraps a JSON value that may arrive as a string or a bare
// number into the free-form text ParseMoney expects.
func moneyText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parseWhen accepts the timestamp shapes the front-end sends.
func parseWhen(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp")
}
