package api

import (
	"encoding/json"
	"net/http"
)

// handleHealth reports liveness. It answers even when the warehouse is
// down: readiness of the pipeline is a per-turn concern, not a probe one.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
