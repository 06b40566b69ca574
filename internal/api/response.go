package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/askdw/askdw/internal/log"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes data wrapped in the {"data": ...} envelope.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	writePayload(w, status, map[string]any{"data": data}, logger)
}

// writeError writes the {"error": {code, message}} envelope.
func writeError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	writePayload(w, status, map[string]any{"error": errorBody{Code: code, Message: message}}, logger)
}

// writePayload encodes buffer-first so headers are only sent after
// successful encoding; an encode failure can still return a proper 500.
func writePayload(w http.ResponseWriter, status int, payload any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		logger.Error("encoding response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("writing response body", "error", err)
	}
}
