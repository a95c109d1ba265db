package invite

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telemed/telemed/internal/platform/auth"
	"github.com/telemed/telemed/pkg/pagination"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/meetings/:id/invites", h.ListByCall)
	api.GET("/invites/received", h.ListReceived)
}

// ListByCall returns the delivery ledger of one meeting.
func (h *Handler) ListByCall(c echo.Context) error {
	if _, ok := auth.IdentityFrom(c); !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	callID := c.Param("id")
	if callID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing meeting id")
	}

	p := pagination.FromContext(c)
	records, total, err := h.repo.ListByCall(c.Request().Context(), callID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "query deliveries")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, p.Limit, p.Offset))
}

// ListReceived returns the invites delivered to the caller's own address.
func (h *Handler) ListReceived(c echo.Context) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if ident.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "identity has no email")
	}

	p := pagination.FromContext(c)
	records, total, err := h.repo.ListByRecipient(c.Request().Context(), ident.Email, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "query deliveries")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, p.Limit, p.Offset))
}
