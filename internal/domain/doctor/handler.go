package doctor

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/internal/platform/validate"
	"github.com/medibook/medibook/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	readGroup.GET("/doctors", h.GetDoctors)
	readGroup.GET("/doctors/:id", h.GetDoctor)

	// Ownership is checked in UpdateDoctor.
	api.PUT("/doctors/:id", h.UpdateDoctor, auth.RequireRole(auth.RoleDoctor))

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/doctors", h.CreateDoctor)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req CreateDoctorRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	d, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

// GetDoctors returns a single doctor when ?id= is given, otherwise the list.
func (h *Handler) GetDoctors(c echo.Context) error {
	if id := c.QueryParam("id"); id != "" {
		d, err := h.svc.Get(c.Request().Context(), id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, d)
	}

	pg := pagination.FromContext(c)
	filter := ListFilter{Specialty: c.QueryParam("specialty")}
	doctors, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	pagination.SetTotal(c, total)
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	ctx := c.Request().Context()
	existing, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if !auth.HasRole(ctx, auth.RoleAdmin) && existing.UserID != auth.UserIDFromContext(ctx) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot edit another doctor's profile")
	}

	var p Profile
	if err := validate.Bind(c, &p); err != nil {
		return err
	}
	d, err := h.svc.Update(ctx, existing.ID, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
