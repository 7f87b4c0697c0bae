package routes

import (
	"net/http"

	"github.com/admoderation/platform/pkg/observability/metrics"
	"github.com/gorilla/mux"
)

// RegisterOperational mounts /health and /metrics, shared by the API and
// the worker's side listener.
func RegisterOperational(r *mux.Router, service string) {
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": service})
	}).Methods(http.MethodGet)
	r.HandleFunc("/metrics", metrics.Handler).Methods(http.MethodGet)
}
