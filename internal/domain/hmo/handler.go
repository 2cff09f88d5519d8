package hmo

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
	api.POST("/claims", h.SubmitClaim)
	api.GET("/claims", h.ListClaims)
	api.GET("/claims/:id", h.GetClaim)
	api.GET("/claims/number/:number", h.GetClaimByNumber)
	api.POST("/claims/:id/review", h.BeginReview)
	api.POST("/claims/:id/approve", h.ApproveClaim)
	api.POST("/claims/:id/reject", h.RejectClaim)
	api.POST("/claims/:id/pay", h.MarkClaimPaid)
	api.POST("/claims/:id/reopen", h.ReopenClaim)

	api.PUT("/coverage", h.UpsertCoverage)
	api.GET("/coverage", h.GetCoverage)
	api.POST("/coverage/recompute", h.RecomputeCoverage)
}

func (h *Handler) SubmitClaim(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.SubmitClaim(c.Request().Context(), in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) GetClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cl, err := h.svc.GetClaim(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) GetClaimByNumber(c echo.Context) error {
	cl, err := h.svc.GetClaimByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListClaims(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if pidStr := c.QueryParam("patient_id"); pidStr != "" {
		pid, err := uuid.Parse(pidStr)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err := h.svc.ListClaimsByPatient(ctx, pid, pg.Limit, pg.Offset)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	if prvStr := c.QueryParam("provider_id"); prvStr != "" {
		prv, err := uuid.Parse(prvStr)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
		}
		items, total, err := h.svc.ListClaimsByProvider(ctx, prv, pg.Limit, pg.Offset)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	return echo.NewHTTPError(http.StatusBadRequest, "patient_id or provider_id query parameter is required")
}

func (h *Handler) BeginReview(c echo.Context) error {
	return h.transition(c, h.svc.BeginReview)
}

func (h *Handler) ApproveClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.ApproveClaim(c.Request().Context(), id, body.Amount)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) RejectClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.RejectClaim(c.Request().Context(), id, body.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) MarkClaimPaid(c echo.Context) error {
	return h.transition(c, h.svc.MarkClaimPaid)
}

func (h *Handler) ReopenClaim(c echo.Context) error {
	return h.transition(c, h.svc.ReopenClaim)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*Claim, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cl, err := fn(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) UpsertCoverage(c echo.Context) error {
	var cov Coverage
	if err := c.Bind(&cov); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpsertCoverage(c.Request().Context(), &cov); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cov)
}

func (h *Handler) GetCoverage(c echo.Context) error {
	patientID, providerID, err := coveragePair(c)
	if err != nil {
		return err
	}
	cov, err := h.svc.GetCoverage(c.Request().Context(), patientID, providerID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cov)
}

func (h *Handler) RecomputeCoverage(c echo.Context) error {
	patientID, providerID, err := coveragePair(c)
	if err != nil {
		return err
	}
	cov, err := h.svc.RecomputeCoverage(c.Request().Context(), patientID, providerID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cov)
}

func coveragePair(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	providerID, err := uuid.Parse(c.QueryParam("provider_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
	}
	return patientID, providerID, nil
}

func mapError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ve.Error())
	}
	var te *InvalidTransitionError
	if errors.As(err, &te) {
		return echo.NewHTTPError(http.StatusConflict, te.Error())
	}
	if errors.Is(err, db.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	if errors.Is(err, db.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
