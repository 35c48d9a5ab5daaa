package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zmang24/si-opportunity-manager/internal/pushbus"
	"go.uber.org/zap"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = 30 * time.Second

	// Clients only send control frames
	eventsReadLimit = 512
)

// EventsHandler streams committed notifications and ticket changes over a
// WebSocket. Delivery is best effort; clients reconcile through the
// notification list after reconnecting.
type EventsHandler struct {
	bus      *pushbus.Bus
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewEventsHandler creates an EventsHandler. allowedOrigins limits browser
// origins; an empty list or "*" accepts any.
func NewEventsHandler(bus *pushbus.Bus, allowedOrigins []string, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Stream godoc
// @Summary Event stream
// @Description WebSocket carrying {type:"notification", payload} and {type:"ticket_changed", id} frames. The token may be passed as access_token.
// @Tags Notifications
// @Param access_token query string false "Bearer token for clients that cannot set headers"
// @Success 101
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /events [get]
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requireUser(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade to websocket",
			zap.String("user_id", userCtx.UserID.String()),
			zap.Error(err))
		return
	}

	sub := h.bus.Subscribe(userCtx.UserID)
	log := h.logger.With(zap.String("user_id", userCtx.UserID.String()))
	log.Info("event stream connected", zap.String("remote_addr", r.RemoteAddr))

	go h.writePump(conn, sub, log)
	h.readPump(conn, log)

	// Closing the subscription ends the write pump
	h.bus.Unsubscribe(sub)
	log.Info("event stream disconnected")
}

func (h *EventsHandler) readPump(conn *websocket.Conn, log *zap.Logger) {
	conn.SetReadLimit(eventsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug("event stream read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *EventsHandler) writePump(conn *websocket.Conn, sub *pushbus.Subscription, log *zap.Logger) {
	ticker := time.NewTicker(eventsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if !ok {
				code, text := websocket.CloseNormalClosure, ""
				if sub.Dropped() {
					code, text = websocket.CloseTryAgainLater, "subscriber too slow"
				}
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("event stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
