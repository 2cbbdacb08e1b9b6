package ledger

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/receitas/diarias", h.ListDaily)
	api.GET("/receitas/diarias/:date", h.GetDay)
}

// ListDaily returns the revenue rows between ?from and ?to (defaults to the
// current month).
func (h *Handler) ListDaily(c echo.Context) error {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, -1)

	var err error
	if raw := c.QueryParam("from"); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
		}
	}

	items, err := h.svc.Range(c.Request().Context(), from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if items == nil {
		items = []*DailyRevenue{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetDay(c echo.Context) error {
	day, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
	}
	d, err := h.svc.DayTotal(c.Request().Context(), day)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read revenue")
	}
	return c.JSON(http.StatusOK, d)
}
