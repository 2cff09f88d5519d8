package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/settlements/:id/charges", h.LinkAppointment)
	api.GET("/settlements/:id", h.GetSettlement)
	api.GET("/settlements/:id/charges", h.ListBySettlement)
	api.POST("/charges/:id/pay", h.PayCharge)
	api.POST("/charges/:id/cancel", h.CancelCharge)
	api.GET("/charges/:id", h.GetCharge)
	api.GET("/appointments/:id/charges", h.ListByAppointment)
}

func (h *Handler) LinkAppointment(c echo.Context) error {
	settlementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid settlement id")
	}
	var body struct {
		AppointmentID uuid.UUID `json:"appointment_id"`
		Price         float64   `json:"price"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ch, err := h.svc.LinkAppointment(c.Request().Context(), body.AppointmentID, settlementID, body.Price)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, ch)
}

func (h *Handler) PayCharge(c echo.Context) error {
	return h.mark(c, h.svc.MarkChargePaid)
}

func (h *Handler) CancelCharge(c echo.Context) error {
	return h.mark(c, h.svc.MarkChargeCancelled)
}

func (h *Handler) mark(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*Charge, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid charge id")
	}
	ch, err := fn(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ch)
}

func (h *Handler) GetCharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid charge id")
	}
	ch, err := h.svc.GetCharge(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ch)
}

func (h *Handler) GetSettlement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid settlement id")
	}
	s, err := h.svc.GetSettlement(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListBySettlement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid settlement id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBySettlement(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	items, err := h.svc.ListByAppointment(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func mapError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ve.Error())
	}
	if errors.Is(err, db.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	if errors.Is(err, db.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
