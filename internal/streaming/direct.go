package streaming

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/david-morgenstern/filebrowser/internal/logging"
	"github.com/david-morgenstern/filebrowser/internal/mediatypes"
	"github.com/david-morgenstern/filebrowser/internal/metrics"
)

// ErrNotFound indicates the requested file does not exist. Maps to HTTP 404.
var ErrNotFound = errors.New("file not found")

// ViewRecorder receives a view event when a client starts playback of a
// resource. Implementations must be safe for concurrent use; failures are
// logged by the streamer and never interrupt the byte stream.
type ViewRecorder interface {
	RecordView(clientID, filePath, fileName, fileType string, fileSize int64) error
}

// Direct serves raw file bytes with HTTP range support.
type Direct struct {
	config WriterConfig
	views  ViewRecorder
}

// NewDirect creates a direct streamer. views may be nil to disable watch
// history reporting.
func NewDirect(views ViewRecorder) *Direct {
	return &Direct{
		config: DefaultWriterConfig(),
		views:  views,
	}
}

// ServeFile streams fullPath to the client, honoring a Range header.
// relPath is the resource's path as clients address it and keys the view
// record, so position lookups hit the same row regardless of where the media
// root is mounted.
//
// Without a range the whole file is served with status 200 and
// Accept-Ranges advertised; with a range exactly the resolved window is
// served with status 206. A view event is reported when the request has no
// range or the range starts at byte 0, which distinguishes playback start
// from a mid-stream re-request without any session state.
func (d *Direct) ServeFile(w http.ResponseWriter, r *http.Request, fullPath, relPath, clientID string) error {
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return ErrNotFound
	}

	rng, err := ResolveRange(r.Header.Get("Range"), info.Size())
	if err != nil {
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(info.Size(), 10))
		http.Error(w, "Requested range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return err
	}

	if rng == nil || rng.Start == 0 {
		d.recordView(clientID, fullPath, relPath, info.Size())
	}

	file, err := os.Open(fullPath)
	if err != nil {
		http.Error(w, "Failed to open file", http.StatusInternalServerError)
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close %s: %v", fullPath, err)
		}
	}()

	w.Header().Set("Content-Type", mediatypes.DetectMimeType(fullPath))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	var reader io.Reader = file
	if rng != nil {
		if _, err := file.Seek(rng.Start, io.SeekStart); err != nil {
			http.Error(w, "Failed to seek file", http.StatusInternalServerError)
			return err
		}
		reader = io.LimitReader(file, rng.Length())

		w.Header().Set("Content-Range", rng.ContentRange())
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		w.WriteHeader(http.StatusOK)
	}

	if r.Method == http.MethodHead {
		return nil
	}

	written, err := Copy(r.Context(), w, reader, d.config)
	metrics.StreamedBytesTotal.WithLabelValues("direct").Add(float64(written))

	if err != nil {
		// A vanished client is a cancellation signal, not a failure.
		if errors.Is(err, ErrClientGone) || errors.Is(err, ErrStreamCanceled) {
			logging.Debug("direct stream ended early for %s: %v", fullPath, err)
			return nil
		}
		return err
	}
	return nil
}

func (d *Direct) recordView(clientID, fullPath, relPath string, size int64) {
	if d.views == nil {
		return
	}
	fileType := string(mediatypes.GetFileTypeForPath(fullPath))
	if err := d.views.RecordView(clientID, relPath, filepath.Base(fullPath), fileType, size); err != nil {
		logging.Warn("failed to record view for %s: %v", relPath, err)
	}
}
