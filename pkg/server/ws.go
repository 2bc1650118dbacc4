package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/odvcencio/promptgate/pkg/backend"
	apperrors "github.com/odvcencio/promptgate/pkg/errors"
	"github.com/odvcencio/promptgate/pkg/logging"
)

const (
	wsWriteTimeout  = 10 * time.Second
	wsRequestLimit  = 1 << 20
	wsCloseDeadline = 5 * time.Second
)

// wsWriter relays stream chunks as binary frames. gorilla connections
// allow one concurrent writer, so writes are serialized with the close
// frame sent at the end of the stream.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (ww *wsWriter) Write(p []byte) (int, error) {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	ww.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := ww.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (ww *wsWriter) close(code int, reason string) {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	ww.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseDeadline))
}

// handleWebSocket runs one streamed execution per connection: the client
// sends a single JSON request, output arrives as binary frames, and the
// close frame signals completion.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return s.isOriginAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsRequestLimit)

	var req backend.Request
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		ww := &wsWriter{conn: conn}
		ww.close(websocket.CloseInvalidFramePayloadData, "malformed request")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain control frames and detect the peer going away mid-stream.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ww := &wsWriter{conn: conn}
	if streamErr := s.runner.Stream(ctx, req, ww); streamErr != nil {
		s.logger.Warn(logging.CategoryStream, "ws_stream_failed", streamErr.Message, map[string]any{
			"request_id": requestIDFromContext(r.Context()),
		})
		if streamErr.Code == apperrors.ErrCodeValidation {
			ww.close(websocket.ClosePolicyViolation, streamErr.Message)
			return
		}
		// Execution failures already produced an inline record frame.
		ww.close(websocket.CloseInternalServerErr, "execution failed")
		return
	}
	ww.close(websocket.CloseNormalClosure, "")
}
