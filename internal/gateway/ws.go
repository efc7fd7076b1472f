package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/mintya/auto-proxy/internal/obs"
)

// writeTimeout bounds each individual event write so one stalled client
// can't hang the fan-out goroutine indefinitely.
const writeTimeout = 5 * time.Second

// eventChanCapacity sizes the per-connection fan-out channel; it does not
// need to match obs.Sink's ring buffer exactly, only be generous enough
// that a slow client drops events instead of stalling the sink.
const eventChanCapacity = 100

// handleWebSocketEvents streams observability sink events to a connected
// client as JSON lines, draining the replay buffer first so a client that
// just connected isn't staring at a blank pane.
func (s *Server) handleWebSocketEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	ch := make(chan obs.Event, eventChanCapacity)
	s.sink.Subscribe(ch)
	defer s.sink.Unsubscribe(ch)

	for _, e := range s.sink.Recent() {
		if err := writeEvent(ctx, conn, e); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		case e := <-ch:
			if err := writeEvent(ctx, conn, e); err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, e obs.Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, raw)
}
