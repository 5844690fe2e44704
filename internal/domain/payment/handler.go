package payment

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/internal/platform/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments/:id/payments", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	g.GET("", h.ListPayments)

	pay := api.Group("/appointments/:id/payments", auth.RequireRole(auth.RolePatient))
	pay.POST("", h.CreatePayment)
}

func (h *Handler) CreatePayment(c echo.Context) error {
	var req ChargeRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Authorize(ctx, c.Param("id")); err != nil {
		return err
	}
	p, err := h.svc.Pay(ctx, c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.Authorize(ctx, c.Param("id")); err != nil {
		return err
	}
	payments, err := h.svc.List(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payments)
}
