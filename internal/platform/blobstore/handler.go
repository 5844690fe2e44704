package blobstore

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/internal/platform/apperr"
	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/internal/platform/validate"
)

// UploadResponse is returned after an upload; URL is suitable for the image
// field of doctor and patient records.
type UploadResponse struct {
	*BlobMetadata
	URL string `json:"url"`
}

type BlobHandler struct {
	store   BlobStore
	baseURL string
}

// NewBlobHandler builds the handler. baseURL is the public prefix of the
// download route, e.g. "https://api.example.com/api/v1/images".
func NewBlobHandler(store BlobStore, baseURL string) *BlobHandler {
	return &BlobHandler{store: store, baseURL: strings.TrimRight(baseURL, "/")}
}

// RegisterRoutes mounts upload and delete on the authenticated api group.
func (h *BlobHandler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/images", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	g.POST("", h.handleUpload)
	g.GET("/:id/metadata", h.handleGetMetadata)

	admin := api.Group("/images", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/:id", h.handleDelete)
}

// RegisterPublicRoutes mounts the download route, which must work from
// plain <img> tags without credentials.
func (h *BlobHandler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/images/:id", h.handleDownload)
}

func (h *BlobHandler) handleUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return apperr.Validation(validate.MissingFieldsMessage, []string{"file"})
	}

	src, err := file.Open()
	if err != nil {
		return apperr.Internal("open uploaded file", err)
	}
	defer src.Close()

	meta := BlobMetadata{
		FileName:  file.Filename,
		CreatedBy: auth.UserIDFromContext(c.Request().Context()),
	}

	result, err := h.store.Upload(c.Request().Context(), meta, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrInvalidContentType):
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, ErrEmptyFile):
			return apperr.Validation(err.Error(), nil)
		default:
			var he *echo.HTTPError
			if errors.As(err, &he) {
				return he
			}
			return apperr.Internal("upload image", err)
		}
	}

	return c.JSON(http.StatusCreated, UploadResponse{BlobMetadata: result, URL: h.baseURL + "/" + result.ID})
}

func (h *BlobHandler) handleDownload(c echo.Context) error {
	rc, meta, err := h.store.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return apperr.NotFound("Image not found")
		}
		return apperr.Internal("download image", err)
	}
	defer rc.Close()

	hdr := c.Response().Header()
	hdr.Set("Cache-Control", "public, max-age=86400, immutable")
	hdr.Set("ETag", `"`+meta.Hash+`"`)
	hdr.Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, strings.ReplaceAll(meta.FileName, `"`, "")))
	if c.Request().Header.Get("If-None-Match") == `"`+meta.Hash+`"` {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *BlobHandler) handleGetMetadata(c echo.Context) error {
	meta, err := h.store.GetMetadata(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return apperr.NotFound("Image not found")
		}
		return apperr.Internal("get image metadata", err)
	}
	return c.JSON(http.StatusOK, meta)
}

func (h *BlobHandler) handleDelete(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return apperr.NotFound("Image not found")
		}
		return apperr.Internal("delete image", err)
	}
	return c.NoContent(http.StatusNoContent)
}
