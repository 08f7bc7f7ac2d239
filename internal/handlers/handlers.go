package handlers

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/david-morgenstern/filebrowser/internal/history"
	"github.com/david-morgenstern/filebrowser/internal/media"
	"github.com/david-morgenstern/filebrowser/internal/middleware"
	"github.com/david-morgenstern/filebrowser/internal/probe"
	"github.com/david-morgenstern/filebrowser/internal/startup"
	"github.com/david-morgenstern/filebrowser/internal/streaming"
	"github.com/david-morgenstern/filebrowser/internal/subtitles"
	"github.com/david-morgenstern/filebrowser/internal/transcoder"

	"github.com/gorilla/mux"
)

type Handlers struct {
	store      *history.Store
	prober     probe.MetadataProber
	manager    *transcoder.Manager
	direct     *streaming.Direct
	thumbGen   *media.ThumbnailGenerator
	extractor  *subtitles.Extractor
	mediaDir   string
	transcode  bool
	startedAt  time.Time
}

func New(store *history.Store, prober probe.MetadataProber, manager *transcoder.Manager, extractor *subtitles.Extractor, config *startup.Config) *Handlers {
	return &Handlers{
		store:     store,
		prober:    prober,
		manager:   manager,
		direct:    streaming.NewDirect(store),
		thumbGen:  media.NewThumbnailGenerator(config.ThumbnailDir, config.FFmpegPath, config.ThumbnailsEnabled),
		extractor: extractor,
		mediaDir:  config.MediaDir,
		transcode: config.TranscodingEnabled,
		startedAt: time.Now(),
	}
}

// RegisterRoutes wires all application routes onto the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/version", h.GetVersion).Methods(http.MethodGet)

	r.HandleFunc("/api/browse", h.Browse).Methods(http.MethodGet)
	r.HandleFunc("/api/browse/{path:.*}", h.Browse).Methods(http.MethodGet)
	r.HandleFunc("/api/file-info/{path:.*}", h.FileInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/thumbnail/{path:.*}", h.Thumbnail).Methods(http.MethodGet)

	r.HandleFunc("/stream/{path:.*}", h.StreamFile).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/transcode/{path:.*}", h.TranscodeVideo).Methods(http.MethodGet)
	r.HandleFunc("/download/{path:.*}", h.Download).Methods(http.MethodGet)

	r.HandleFunc("/api/video-info/{path:.*}", h.VideoInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/audio-tracks/{path:.*}", h.AudioTracks).Methods(http.MethodGet)
	r.HandleFunc("/api/subtitle-tracks/{path:.*}", h.SubtitleTracks).Methods(http.MethodGet)
	r.HandleFunc("/api/subtitles/{path:.*}", h.Subtitles).Methods(http.MethodGet)

	r.HandleFunc("/api/save-position/{path:.*}", h.SavePosition).Methods(http.MethodPost)
	r.HandleFunc("/api/get-position/{path:.*}", h.GetPosition).Methods(http.MethodGet)
	r.HandleFunc("/api/continue-watching", h.ContinueWatching).Methods(http.MethodGet)
	r.HandleFunc("/api/history", h.History).Methods(http.MethodGet)
}

// resolvePath joins a request path onto the media root and rejects anything
// that escapes it.
func (h *Handlers) resolvePath(requestPath string) (string, bool) {
	fullPath := filepath.Join(h.mediaDir, filepath.FromSlash(requestPath))
	absPath, err := filepath.Abs(fullPath)
	if err != nil || !isSubPath(h.mediaDir, absPath) {
		return "", false
	}
	return absPath, true
}

func isSubPath(parent, child string) bool {
	parent, _ = filepath.Abs(parent)
	child, _ = filepath.Abs(child)
	if child == parent {
		return true
	}
	return len(child) > len(parent) && child[:len(parent)] == parent && child[len(parent)] == filepath.Separator
}

func clientID(r *http.Request) string {
	return middleware.ClientID(r)
}
