package server

import (
	"net/http"

	"github.com/odvcencio/promptgate/pkg/backend"
	"github.com/odvcencio/promptgate/pkg/relay"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		respondJSON(w, map[string]string{"status": "not ready"})
		return
	}
	respondJSON(w, map[string]string{"status": "ready"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req backend.Request
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesRequest); err != nil {
		respondError(w, status, err)
		return
	}

	result, runErr := s.runner.Run(r.Context(), req)
	if runErr != nil {
		respondError(w, statusForError(runErr), runErr)
		return
	}
	respondJSON(w, result)
}

// BatchRequest is the wire form of a batch submission. Each item is a bare
// prompt string or an object with per-item overrides; common options apply
// to every item that does not override them.
type BatchRequest struct {
	Items  []relay.BatchItem `json:"items"`
	Common backend.Request   `json:"common"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesRequest); err != nil {
		respondError(w, status, err)
		return
	}

	result, runErr := s.runner.RunBatch(r.Context(), req.Items, req.Common)
	if runErr != nil {
		respondError(w, statusForError(runErr), runErr)
		return
	}
	respondJSON(w, result)
}

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	backends := s.runner.Registry().List()
	out := make([]map[string]any, len(backends))
	for i, b := range backends {
		out[i] = map[string]any{
			"name":          b.Name(),
			"command":       b.Command(),
			"default_model": b.DefaultModel(),
		}
	}
	respondJSON(w, map[string]any{"backends": out})
}
