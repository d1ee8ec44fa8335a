package monitor

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// Feed serves a local-only websocket endpoint streaming every Event a
// TaskMonitor publishes as a JSON frame, giving the teacher's previously
// declared-but-unwired coder/websocket dependency a concrete transport.
type Feed struct {
	monitor *TaskMonitor
	logger  *slog.Logger
}

// NewFeed wraps monitor for serving over HTTP.
func NewFeed(monitor *TaskMonitor, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{monitor: monitor, logger: logger}
}

// ServeHTTP upgrades the request to a websocket connection and streams
// events until the client disconnects or the request context ends.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		f.logger.Warn("monitor: websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	events, unsubscribe := f.monitor.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case evt, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				f.logger.Error("monitor: marshal event failed", "error", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				f.logger.Debug("monitor: websocket write failed, closing", "error", err)
				return
			}
		}
	}
}
