package httpapi

import (
	"net/http"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

// readyz checks the storage backend before reporting ready.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "not ready", "")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
