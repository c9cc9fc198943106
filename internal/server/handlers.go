package server

import (
	"encoding/json"
	"net/http"

	"github.com/claude/studiotv/internal/display"
	"github.com/claude/studiotv/internal/session"
)

// stateResponse is the one-shot payload the TV polls: the reconciled
// session plus the view the display should render right now.
type stateResponse struct {
	session.State
	View display.View `json:"view"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		State: s.locator.State(),
		View:  s.controller.View(),
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.detector.State())
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	idx := s.tracker.Current()
	if idx == nil {
		writeJSON(w, http.StatusOK, map[string]any{"progress": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": idx})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.locator.StatusLog().Entries()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
