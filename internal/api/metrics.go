package api

import (
	"net/http"

	"github.com/nerrad567/objrecord/internal/infrastructure/metrics"
)

// handleMetrics serves the Prometheus exposition of the configured gatherer.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeNotFound(w, "metrics are disabled")
		return
	}
	metrics.Handler(s.metrics).ServeHTTP(w, r)
}
