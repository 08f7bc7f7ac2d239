package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/david-morgenstern/filebrowser/internal/logging"
	"github.com/david-morgenstern/filebrowser/internal/mediatypes"

	"github.com/gorilla/mux"
)

// BrowseEntry describes one directory entry in a listing.
type BrowseEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size"`
	ModTime  string `json:"modTime"`
}

// BrowseResponse is the directory listing payload.
type BrowseResponse struct {
	Path    string        `json:"path"`
	Parent  string        `json:"parent,omitempty"`
	Entries []BrowseEntry `json:"entries"`
	Count   int           `json:"count"`
}

// Browse lists a directory under the media root. Folders sort first, then
// files, both case-insensitively by name.
func (h *Handlers) Browse(w http.ResponseWriter, r *http.Request) {
	requestPath := mux.Vars(r)["path"]

	fullPath, ok := h.resolvePath(requestPath)
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		http.Error(w, "Directory not found", http.StatusNotFound)
		return
	}
	if !info.IsDir() {
		http.Error(w, "Not a directory", http.StatusBadRequest)
		return
	}

	dirEntries, err := os.ReadDir(fullPath)
	if err != nil {
		logging.Error("Browse %s: %v", fullPath, err)
		http.Error(w, "Failed to list directory", http.StatusInternalServerError)
		return
	}

	entries := make([]BrowseEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}

		fi, err := e.Info()
		if err != nil {
			continue
		}

		entry := BrowseEntry{
			Name:    e.Name(),
			Path:    path.Join(requestPath, e.Name()),
			ModTime: fi.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
		}
		if e.IsDir() {
			entry.Type = string(mediatypes.FileTypeFolder)
		} else {
			entry.Type = string(mediatypes.GetFileTypeForPath(e.Name()))
			entry.MimeType = mediatypes.GetMimeType(filepath.Ext(e.Name()))
			entry.Size = fi.Size()
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		iDir := entries[i].Type == string(mediatypes.FileTypeFolder)
		jDir := entries[j].Type == string(mediatypes.FileTypeFolder)
		if iDir != jDir {
			return iDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	response := BrowseResponse{
		Path:    requestPath,
		Entries: entries,
		Count:   len(entries),
	}
	if requestPath != "" {
		response.Parent = path.Dir(strings.TrimSuffix(requestPath, "/"))
		if response.Parent == "." {
			response.Parent = ""
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// FileInfoResponse describes a single file.
type FileInfoResponse struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	ModTime  string `json:"modTime"`
}

// FileInfo returns metadata for one file.
func (h *Handlers) FileInfo(w http.ResponseWriter, r *http.Request) {
	requestPath := mux.Vars(r)["path"]

	fullPath, ok := h.resolvePath(requestPath)
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, FileInfoResponse{
		Name:     info.Name(),
		Path:     requestPath,
		Type:     string(mediatypes.GetFileTypeForPath(fullPath)),
		MimeType: mediatypes.DetectMimeType(fullPath),
		Size:     info.Size(),
		ModTime:  info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Thumbnail serves a cached preview image for an image or video file.
func (h *Handlers) Thumbnail(w http.ResponseWriter, r *http.Request) {
	fullPath, ok := h.resolvePath(mux.Vars(r)["path"])
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if !h.thumbGen.IsEnabled() {
		http.Error(w, "Thumbnails disabled", http.StatusNotFound)
		return
	}

	fileType := mediatypes.GetFileTypeForPath(fullPath)
	data, err := h.thumbGen.GetThumbnail(fullPath, fileType)
	if err != nil {
		logging.Debug("Thumbnail %s: %v", fullPath, err)
		http.Error(w, "Thumbnail unavailable", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Thumbnail write %s: %v", fullPath, err)
	}
}
