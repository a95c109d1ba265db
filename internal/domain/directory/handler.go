package directory

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/telemed/telemed/internal/platform/auth"
	"github.com/telemed/telemed/internal/platform/callstore"
)

type Handler struct {
	svc  *Service
	feed *Feed
}

func NewHandler(svc *Service, feed *Feed) *Handler {
	return &Handler{svc: svc, feed: feed}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/calls/upcoming", h.ListUpcoming)
	api.GET("/calls/next", h.NextUpcoming)
	api.GET("/calls/ended", h.ListEnded)
	api.GET("/recordings", h.ListRecordings)
}

// window resolves the requested day. ?date=YYYY-MM-DD picks a day other than
// today; ?tz= names an IANA zone, default is the server's local zone.
func window(c echo.Context) (Window, error) {
	loc := time.Local
	if tz := c.QueryParam("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return Window{}, echo.NewHTTPError(http.StatusBadRequest, "invalid tz")
		}
		loc = l
	}
	day := time.Now().In(loc)
	if date := c.QueryParam("date"); date != "" {
		d, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return Window{}, echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		}
		day = d
	}
	return DayWindow(day, loc), nil
}

func (h *Handler) ListUpcoming(c echo.Context) error {
	return h.serveCalls(c, CategoryUpcoming)
}

func (h *Handler) ListEnded(c echo.Context) error {
	return h.serveCalls(c, CategoryEnded)
}

func (h *Handler) serveCalls(c echo.Context, category Category) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	w, err := window(c)
	if err != nil {
		return err
	}
	snap, err := h.feed.Get(c.Request().Context(), ident.UserID, category, w)
	if err != nil {
		return backendError(err)
	}
	resp := callsResponse{Calls: snap.Calls, UpdatedAt: snap.UpdatedAt}
	if snap.Calls == nil {
		resp.Calls = []callstore.Call{}
	}
	if snap.Err != nil {
		resp.RefreshError = snap.Err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) NextUpcoming(c echo.Context) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	w, err := window(c)
	if err != nil {
		return err
	}
	call, err := h.svc.NextUpcoming(c.Request().Context(), ident.UserID, w)
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, nextResponse{Call: call})
}

func (h *Handler) ListRecordings(c echo.Context) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	w, err := window(c)
	if err != nil {
		return err
	}
	snap, err := h.feed.Get(c.Request().Context(), ident.UserID, CategoryRecordings, w)
	if err != nil {
		return backendError(err)
	}
	resp := recordingsResponse{
		Recordings:    snap.Recordings,
		FailedCallIDs: snap.FailedCallIDs,
		UpdatedAt:     snap.UpdatedAt,
	}
	if snap.Recordings == nil {
		resp.Recordings = []RecordingEntry{}
	}
	if snap.Err != nil {
		resp.RefreshError = snap.Err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// backendError maps call store failures onto HTTP statuses. A transient
// backend failure is reported as 503 so clients know a retry can succeed.
func backendError(err error) error {
	if callstore.IsTransient(err) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "call store temporarily unavailable")
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}

type callsResponse struct {
	Calls        []callstore.Call `json:"calls"`
	RefreshError string           `json:"refresh_error,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type nextResponse struct {
	Call *callstore.Call `json:"call"`
}

type recordingsResponse struct {
	Recordings    []RecordingEntry `json:"recordings"`
	FailedCallIDs []string         `json:"failed_call_ids,omitempty"`
	RefreshError  string           `json:"refresh_error,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
