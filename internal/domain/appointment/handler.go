package appointment

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/internal/platform/notification"
	"github.com/medibook/medibook/internal/platform/validate"
	"github.com/medibook/medibook/pkg/pagination"
)

// NotificationStatusHeader reports the cancellation e-mail outcome on DELETE.
const NotificationStatusHeader = "X-Notification-Status"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes guards each route by role. Service.Authorize and the Scope
// helpers then restrict doctors and patients to their own appointments.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/:id", h.GetAppointment)
	readGroup.POST("/appointments/:id/cancel", h.CancelAppointment)

	patientGroup := api.Group("", auth.RequireRole(auth.RolePatient))
	patientGroup.POST("/appointments", h.CreateAppointment)

	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.GET("/appointments/summary", h.GetSummary)
	doctorGroup.PUT("/appointments/:id", h.UpdateAppointment)
	doctorGroup.DELETE("/appointments/:id", h.DeleteAppointment)
	doctorGroup.POST("/appointments/:id/confirm", h.ConfirmAppointment)
	doctorGroup.POST("/appointments/:id/complete", h.CompleteAppointment)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req CreateRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	h.svc.ScopeBooking(ctx, &req)
	a, err := h.svc.Create(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{
		PatientName: strings.TrimSpace(c.QueryParam("patientName")),
		PatientID:   c.QueryParam("patientId"),
		DoctorEmail: strings.TrimSpace(c.QueryParam("doctorEmail")),
		Status:      Status(c.QueryParam("status")),
		Sort:        Sort(c.QueryParam("sort")),
		Limit:       pg.Limit,
		Offset:      pg.Offset,
	}
	if ref := strings.TrimSpace(firstNonEmpty(c.QueryParam("doctorId"), c.QueryParam("doctorRef"))); ref != "" {
		if strings.Contains(ref, "@") {
			filter.DoctorEmail = ref
		} else {
			filter.DoctorID = ref
		}
	}

	ctx := c.Request().Context()
	if err := h.svc.ScopeList(ctx, &filter); err != nil {
		return err
	}
	appts, total, err := h.svc.List(ctx, filter)
	if err != nil {
		return err
	}
	pagination.SetTotal(c, total)
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) GetSummary(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := h.svc.ScopeSummary(ctx, c.QueryParam("doctorId"))
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(ctx, doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.svc.Authorize(c.Request().Context(), c.Param("id"), false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	var req UpdateRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.svc.Authorize(ctx, c.Param("id"), true); err != nil {
		return err
	}
	a, err := h.svc.Update(ctx, c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.svc.Authorize(ctx, c.Param("id"), true); err != nil {
		return err
	}
	n, err := h.svc.Delete(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(NotificationStatusHeader, n.Status)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.svc.Authorize(ctx, c.Param("id"), true); err != nil {
		return err
	}
	a, err := h.svc.Confirm(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.svc.Authorize(ctx, c.Param("id"), true); err != nil {
		return err
	}
	a, err := h.svc.Complete(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// CancelResponse is the cancelled appointment plus the notification outcome.
type CancelResponse struct {
	*Appointment
	Notification *notification.Notification `json:"notification"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	var req CancelRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.svc.Authorize(ctx, c.Param("id"), false); err != nil {
		return err
	}
	a, n, err := h.svc.Cancel(ctx, c.Param("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CancelResponse{Appointment: a, Notification: n})
}
