package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"google.golang.org/grpc/status"

	"github.com/s3kfm/lezhure-maps/internal/monitoring"
	"github.com/s3kfm/lezhure-maps/mapsvc"
	"github.com/s3kfm/lezhure-maps/mapview"
	"github.com/s3kfm/lezhure-maps/presenter"
)

const (
	streamInterval = 100 * time.Millisecond
	writeWait      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is sent by the browser over the session stream.
type StreamMessage struct {
	Type string        `json:"type"` // "settle"
	View *mapview.View `json:"view,omitempty"`
}

// StreamFrame is pushed to the browser over the session stream.
type StreamFrame struct {
	Type   string                 `json:"type"` // "ops", "settle" or "error"
	Ops    []presenter.Op         `json:"ops,omitempty"`
	Settle *mapsvc.SettleResponse `json:"settle,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// stream upgrades to a WebSocket that pushes surface operations as they are
// recorded and accepts settle messages from the client.
func (s *Server) stream(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	// Unknown sessions fail before the upgrade so clients get a 404.
	first, err := s.backend.Drain(ctx, &mapsvc.DrainRequest{SessionID: id})
	if err != nil {
		abortWithError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		monitoring.Logf("api: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(f StreamFrame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(f)
	}

	if err := write(StreamFrame{Type: "ops", Ops: first.Ops}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg StreamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != "settle" {
				write(StreamFrame{Type: "error", Error: "unknown message type " + msg.Type})
				continue
			}
			resp, err := s.backend.Settle(ctx, &mapsvc.SettleRequest{SessionID: id, View: msg.View})
			if err != nil {
				write(StreamFrame{Type: "error", Error: status.Convert(err).Message()})
				continue
			}
			write(StreamFrame{Type: "settle", Settle: resp})
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			resp, err := s.backend.Drain(ctx, &mapsvc.DrainRequest{SessionID: id})
			if err != nil {
				write(StreamFrame{Type: "error", Error: status.Convert(err).Message()})
				return
			}
			if len(resp.Ops) == 0 {
				continue
			}
			if err := write(StreamFrame{Type: "ops", Ops: resp.Ops}); err != nil {
				return
			}
		}
	}
}
