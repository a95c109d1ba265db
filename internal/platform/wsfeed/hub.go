// Package wsfeed pushes directory change notices to connected clients over
// WebSockets. Each authenticated client is attached to its own user's feed;
// when a background refresh finds new data, every connection of that user
// gets an invalidation event and re-fetches over plain HTTP.
package wsfeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/telemed/telemed/internal/platform/auth"
)

// Event is one invalidation notice. Category names the directory view that
// changed (upcoming, ended, recordings); Day is the affected calendar day.
type Event struct {
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	Day       string    `json:"day"`
	Timestamp time.Time `json:"timestamp"`
}

// EventDirectoryChanged marks a refreshed directory snapshot.
const EventDirectoryChanged = "directory.changed"

// client is one connection of one user.
type client struct {
	id     string
	userID string
	send   chan []byte
}

// Hub tracks connections per user and fans invalidation events out to them.
type Hub struct {
	mu      sync.RWMutex
	byUser  map[string]map[*client]struct{}
	clients map[*client]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		byUser:  make(map[string]map[*client]struct{}),
		clients: make(map[*client]struct{}),
		log:     logger.With().Str("component", "wsfeed").Logger(),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	if h.byUser[c.userID] == nil {
		h.byUser[c.userID] = make(map[*client]struct{})
	}
	h.byUser[c.userID][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if peers, ok := h.byUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	close(c.send)
}

// NotifyChanged tells every connection of the user that a directory view
// changed. It never blocks: a connection with a full buffer is skipped.
func (h *Hub) NotifyChanged(userID, category, day string) {
	data, err := json.Marshal(Event{
		Type:      EventDirectoryChanged,
		Category:  category,
		Day:       day,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.byUser[userID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// ClientCount returns the total number of connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserCount returns the number of connections of one user.
func (h *Hub) UserCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP connections and attaches them to the hub.
type Handler struct {
	hub *Hub
}

// NewHandler creates a handler bound to the given hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes registers the WebSocket endpoint on the provided group.
// The group must carry identity middleware.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

// HandleConnect upgrades the connection and starts the read/write pumps.
// The connection is bound to the authenticated user; there is no subscribe
// protocol, the user's own feed is the only one available.
func (h *Handler) HandleConnect(c echo.Context) error {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{
		id:     uuid.New().String(),
		userID: ident.UserID,
		send:   make(chan []byte, 64),
	}
	h.hub.register(cl)

	go h.writePump(cl, ws)
	go h.readPump(cl, ws)

	return nil
}

// readPump drains inbound frames until the peer goes away. Inbound payloads
// are ignored; the feed is one-way.
func (h *Handler) readPump(cl *client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.unregister(cl)
		ws.Close()
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Handler) writePump(cl *client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range cl.send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}
