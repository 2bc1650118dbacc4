package server

import (
	"net/http"

	"github.com/odvcencio/promptgate/pkg/backend"
	"github.com/odvcencio/promptgate/pkg/logging"
)

// streamWriter commits the streaming response lazily: headers go out with
// the first byte, and every chunk is flushed so bytes reach the client as
// they arrive. Failures before the first byte can still use a real status
// code.
type streamWriter struct {
	w     http.ResponseWriter
	f     http.Flusher
	wrote bool
}

func (sw *streamWriter) Write(p []byte) (int, error) {
	if !sw.wrote {
		sw.wrote = true
		sw.w.Header().Set("Content-Type", "application/octet-stream")
		sw.w.Header().Set("Cache-Control", "no-cache")
		sw.w.Header().Set("X-Accel-Buffering", "no")
		sw.w.WriteHeader(http.StatusOK)
	}
	n, err := sw.w.Write(p)
	if err == nil && sw.f != nil {
		sw.f.Flush()
	}
	return n, err
}

// handleStream relays backend output as a chunked response. The request
// context is canceled when the client disconnects, which terminates the
// backend process.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req backend.Request
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesRequest); err != nil {
		respondError(w, status, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	sink := &streamWriter{w: w, f: flusher}

	if err := s.runner.Stream(r.Context(), req, sink); err != nil {
		s.logger.Warn(logging.CategoryStream, "stream_failed", err.Message, map[string]any{
			"request_id": requestIDFromContext(r.Context()),
		})
		if !sink.wrote {
			// Nothing was relayed; the client still gets a proper status.
			respondError(w, statusForError(err), err)
		}
	}
}
