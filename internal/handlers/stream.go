package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/david-morgenstern/filebrowser/internal/logging"
	"github.com/david-morgenstern/filebrowser/internal/mediatypes"
	"github.com/david-morgenstern/filebrowser/internal/streaming"

	"github.com/gorilla/mux"
)

// StreamFile serves raw bytes with HTTP range support.
func (h *Handlers) StreamFile(w http.ResponseWriter, r *http.Request) {
	requestPath := mux.Vars(r)["path"]
	fullPath, ok := h.resolvePath(requestPath)
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	err := h.direct.ServeFile(w, r, fullPath, requestPath, clientID(r))
	if err != nil && !errors.Is(err, streaming.ErrNotFound) && !errors.Is(err, streaming.ErrUnsatisfiableRange) {
		logging.Warn("Stream %s: %v", fullPath, err)
	}
}

// Download serves a file as an attachment.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	fullPath, ok := h.resolvePath(mux.Vars(r)["path"])
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	name := filepath.Base(fullPath)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Type", mediatypes.DetectMimeType(fullPath))
	http.ServeFile(w, r, fullPath)
}
