package meeting

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telemed/telemed/internal/platform/auth"
	"github.com/telemed/telemed/internal/platform/callstore"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/meetings", h.Create)
	api.GET("/meetings/personal", h.PersonalLink)
	api.POST("/meetings/personal", h.EnsurePersonal)
}

type createRequest struct {
	Kind string `json:"kind"`
	Draft
}

// Create makes an instant or scheduled meeting. A resubmitted request that
// finds an existing record answers 200 with created = false; a fresh record
// answers 201.
func (h *Handler) Create(c echo.Context) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	out, err := h.svc.Create(c.Request().Context(), ident, kind, req.Draft)
	if err != nil {
		return creationError(err)
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, out)
}

// PersonalLink answers the caller's personal room id and join link without
// touching the store.
func (h *Handler) PersonalLink(c echo.Context) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"call_id":   ident.UserID,
		"join_link": h.svc.JoinLink(ident.UserID, KindPersonal),
	})
}

// EnsurePersonal creates the caller's personal room if it does not exist
// yet.
func (h *Handler) EnsurePersonal(c echo.Context) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	out, err := h.svc.Personal(c.Request().Context(), ident)
	if err != nil {
		return creationError(err)
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, out)
}

func creationError(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	}
	if callstore.IsTransient(err) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "call store temporarily unavailable")
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
