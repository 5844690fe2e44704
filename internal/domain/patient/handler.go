package patient

import (
	"context"
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
	// Patients may only reach their own profile; see selfOrStaff.
	profile := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	profile.POST("/patients", h.CreatePatient)
	profile.GET("/patients/:id", h.GetPatient)
	profile.PUT("/patients/:id", h.UpdatePatient)

	staff := api.Group("", auth.RequireRole(auth.RoleDoctor))
	staff.GET("/patients", h.ListPatients)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/patients/:id", h.DeletePatient)
}

// selfOrStaff reports whether the caller may act on the patient profile id.
// A patient profile shares its id with the owning user.
func selfOrStaff(ctx context.Context, id string) bool {
	if auth.HasRole(ctx, auth.RoleDoctor) {
		return true
	}
	return auth.UserIDFromContext(ctx) == id
}

func forbidden() error {
	return echo.NewHTTPError(http.StatusForbidden, "cannot access another patient's profile")
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req PatientRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if !auth.HasRole(ctx, auth.RoleDoctor) {
		// Patients always create their own profile.
		req.ID = auth.UserIDFromContext(ctx)
	}
	p, err := h.svc.Create(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if !selfOrStaff(ctx, id) {
		return forbidden()
	}
	p, err := h.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	pagination.SetTotal(c, total)
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if !selfOrStaff(ctx, id) {
		return forbidden()
	}
	var req PatientRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.Update(ctx, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
