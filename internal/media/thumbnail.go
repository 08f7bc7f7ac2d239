package media

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/david-morgenstern/filebrowser/internal/logging"
	"github.com/david-morgenstern/filebrowser/internal/mediatypes"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	thumbWidth   = 200
	thumbHeight  = 200
	thumbQuality = 80
)

// ThumbnailGenerator produces 200x200 JPEG previews. Generation is
// serialized under a mutex so concurrent requests for the same uncached file
// decode it once.
type ThumbnailGenerator struct {
	cacheDir   string
	ffmpegPath string
	enabled    bool
	mu         sync.Mutex
}

// NewThumbnailGenerator returns a generator caching into cacheDir. An empty
// ffmpegPath disables video thumbnails but leaves image thumbnails working.
func NewThumbnailGenerator(cacheDir, ffmpegPath string, enabled bool) *ThumbnailGenerator {
	if enabled {
		logging.Debug("ThumbnailGenerator: enabled, cache dir: %s", cacheDir)
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			logging.Warn("ThumbnailGenerator: failed to create cache dir: %v", err)
		}
	} else {
		logging.Debug("ThumbnailGenerator: disabled")
	}
	return &ThumbnailGenerator{
		cacheDir:   cacheDir,
		ffmpegPath: ffmpegPath,
		enabled:    enabled,
	}
}

func (t *ThumbnailGenerator) IsEnabled() bool {
	return t.enabled
}

// GetThumbnail returns cached JPEG bytes for filePath, generating and caching
// them on a miss.
func (t *ThumbnailGenerator) GetThumbnail(filePath string, fileType mediatypes.FileType) ([]byte, error) {
	if !t.enabled {
		return nil, fmt.Errorf("thumbnails disabled")
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}

	hash := md5.Sum([]byte(filePath))
	cacheKey := fmt.Sprintf("%x.jpg", hash)
	cachePath := filepath.Join(t.cacheDir, cacheKey)

	if data, err := os.ReadFile(cachePath); err == nil {
		logging.Debug("Thumbnail cache hit: %s", filePath)
		return data, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another request may have generated it while we waited for the lock.
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	logging.Debug("Thumbnail generating: %s (type: %s)", filePath, fileType)

	var img image.Image
	var err error

	switch fileType {
	case mediatypes.FileTypeImage:
		img, err = t.generateImageThumbnail(filePath)
	case mediatypes.FileTypeVideo:
		img, err = t.generateVideoThumbnail(filePath)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}

	if err != nil {
		return nil, fmt.Errorf("thumbnail generation failed: %w", err)
	}
	if img == nil {
		return nil, fmt.Errorf("thumbnail generation returned nil image")
	}

	thumb := imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	if err := os.WriteFile(cachePath, buf.Bytes(), 0644); err != nil {
		logging.Warn("Failed to cache thumbnail %s: %v", cachePath, err)
	} else {
		logging.Debug("Thumbnail cached: %s", cachePath)
	}

	return buf.Bytes(), nil
}

func (t *ThumbnailGenerator) generateImageThumbnail(filePath string) (image.Image, error) {
	img, err := LoadImageConstrained(filePath, MaxImageDimension, MaxImagePixels)
	if err == nil {
		return img, nil
	}

	logging.Debug("Image decode failed for %s: %v, trying ffmpeg fallback", filePath, err)

	// Formats the in-process decoders don't cover (HEIC, AVIF, camera raw)
	// still decode through ffmpeg when it is available.
	img, ffErr := t.grabFrame(filePath, "")
	if ffErr != nil {
		return nil, fmt.Errorf("all image decode methods failed for %s: %w", filePath, err)
	}
	return img, nil
}

func (t *ThumbnailGenerator) generateVideoThumbnail(filePath string) (image.Image, error) {
	logging.Debug("Extracting video frame: %s", filePath)

	// Grab a frame one second in so pure-black leaders don't become the
	// preview. Very short clips fail that seek, so retry from the start.
	img, err := t.grabFrame(filePath, "00:00:01")
	if err != nil {
		logging.Debug("Frame grab at 1s failed for %s: %v, retrying from start", filePath, err)
		return t.grabFrame(filePath, "")
	}
	return img, nil
}

func (t *ThumbnailGenerator) grabFrame(filePath, seek string) (image.Image, error) {
	if t.ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpeg not available")
	}

	args := []string{"-v", "error"}
	if seek != "" {
		args = append(args, "-ss", seek)
	}
	args = append(args,
		"-i", filePath,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	)

	cmd := exec.Command(t.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", filePath)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}
