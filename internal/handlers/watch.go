package handlers

import (
	"net/http"
	"os"

	"github.com/david-morgenstern/filebrowser/internal/history"
	"github.com/david-morgenstern/filebrowser/internal/logging"

	"github.com/gorilla/mux"
)

// SavePosition persists the playback position for a file the client has
// previously watched. Position saves for files with no prior view record are
// accepted and dropped; the record is only created by an actual playback
// start.
func (h *Handlers) SavePosition(w http.ResponseWriter, r *http.Request) {
	requestPath := mux.Vars(r)["path"]

	if _, ok := h.resolvePath(requestPath); !ok {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	position := parseFloatParam(r, "position", -1)
	if position < 0 {
		writeJSONError(w, "Missing or invalid position", http.StatusBadRequest)
		return
	}

	if err := h.store.SavePosition(clientID(r), requestPath, position); err != nil {
		logging.Warn("Save position %s: %v", requestPath, err)
		writeSoftFailure(w, err)
		return
	}

	noStoreJSON(w)
	writeJSON(w, map[string]interface{}{"success": true})
}

// GetPosition returns the saved playback position for a file, zero when the
// client has never watched it.
func (h *Handlers) GetPosition(w http.ResponseWriter, r *http.Request) {
	requestPath := mux.Vars(r)["path"]

	if _, ok := h.resolvePath(requestPath); !ok {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	position, err := h.store.GetPosition(clientID(r), requestPath)
	if err != nil {
		logging.Warn("Get position %s: %v", requestPath, err)
		writeSoftFailure(w, err)
		return
	}

	noStoreJSON(w)
	writeJSON(w, map[string]float64{"position": position})
}

// ContinueWatching returns the most recently watched video with a saved
// mid-playback position, or null when there is none.
func (h *Handlers) ContinueWatching(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.ContinueWatching(clientID(r))
	if err != nil {
		logging.Warn("Continue watching: %v", err)
		writeSoftFailure(w, err)
		return
	}

	noStoreJSON(w)
	if record == nil {
		writeJSON(w, map[string]interface{}{"video": nil})
		return
	}

	// Prune entries whose file has since disappeared from storage.
	if fullPath, ok := h.resolvePath(record.FilePath); ok {
		if _, statErr := os.Stat(fullPath); statErr != nil {
			writeJSON(w, map[string]interface{}{"video": nil})
			return
		}
	}

	writeJSON(w, map[string]*history.WatchRecord{"video": record})
}

// History lists the client's watch history, most recent first.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 0)

	records, err := h.store.ListHistory(clientID(r), limit)
	if err != nil {
		logging.Warn("List history: %v", err)
		writeSoftFailure(w, err)
		return
	}
	if records == nil {
		records = []history.WatchRecord{}
	}

	noStoreJSON(w)
	writeJSON(w, map[string]interface{}{"history": records, "count": len(records)})
}
