package handler

import (
	"context"
	"net/http"
	"time"

	"p2p-desk/internal/service"
	"p2p-desk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// StreamFrame is one message pushed to a stream client: the full current
// state of the mounted view.
type StreamFrame[T any] struct {
	View     string              `json:"view"`
	Snapshot service.Snapshot[T] `json:"snapshot"`
}

// StreamHandler mounts a polled view for the lifetime of a websocket
// connection and pushes its board every time it changes.
type StreamHandler struct {
	desk     *service.Desk
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewStreamHandler creates a new StreamHandler. An empty origins list
// accepts any origin.
func NewStreamHandler(desk *service.Desk, origins []string, log zerolog.Logger) *StreamHandler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &StreamHandler{
		desk: desk,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
		log: log,
	}
}

// Orders handles GET /api/v1/stream/orders/:actor.
func (h *StreamHandler) Orders(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	actor, ok := actorParam(c)
	if !ok {
		return
	}
	filter, q, ok := bindOrderQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	view, release, err := h.desk.MountOrders(ctx, sess, actor, filter, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("view", view.Name()).Msg("websocket upgrade failed")
		return
	}
	pump(conn, view.Name(), view.Board(), h.log)
}

// Deals handles GET /api/v1/stream/deals.
func (h *StreamHandler) Deals(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	view, release, err := h.desk.MountOpenDeals(ctx, sess, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("view", view.Name()).Msg("websocket upgrade failed")
		return
	}
	pump(conn, view.Name(), view.Board(), h.log)
}

// pump writes the board to conn until the client goes away or the board
// closes, e.g. after the role that mounted it signed out.
func pump[T any](conn *websocket.Conn, name string, board *service.Board[T], log zerolog.Logger) {
	defer func() { _ = conn.Close() }()

	signals, unsubscribe := board.Subscribe()
	defer unsubscribe()

	gone := make(chan struct{})
	go readPump(conn, gone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	send := func() error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(StreamFrame[T]{View: name, Snapshot: board.Snapshot()})
	}
	if err := send(); err != nil {
		return
	}
	for {
		select {
		case _, ok := <-signals:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "view closed"))
				return
			}
			if err := send(); err != nil {
				log.Debug().Err(err).Str("view", name).Msg("stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// readPump drains client frames so pongs and close frames are seen.
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
