package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/david-morgenstern/filebrowser/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer. Encoding
// or write errors are logged since handlers cannot recover from them.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeSoftFailure reports a persistence failure without a non-200 status.
// Store errors never abort the request that observed them.
func writeSoftFailure(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, map[string]interface{}{"success": false, "error": err.Error()})
}

// noStoreJSON sets the headers shared by all watch-state endpoints.
func noStoreJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
}
