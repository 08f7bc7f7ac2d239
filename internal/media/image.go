package media

import (
	"fmt"
	"image"
	"os"

	"github.com/david-morgenstern/filebrowser/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the maximum width or height processed as-is;
	// larger images are downscaled first.
	MaxImageDimension = 4096

	// MaxImagePixels caps total pixels. 20MP decoded as RGBA is ~80MB,
	// which is the most a single thumbnail request may hold.
	MaxImagePixels = 20_000_000
)

// LoadImageConstrained loads an image, downscaling when it exceeds the given
// limits so oversized sources cannot exhaust memory.
func LoadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	dimensions, err := GetImageDimensions(path)
	if err != nil {
		logging.Debug("Could not get image dimensions for %s: %v, loading directly", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	width, height := dimensions.Width, dimensions.Height
	pixels := width * height

	if width <= maxDimension && height <= maxDimension && pixels <= maxPixels {
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	targetWidth, targetHeight := width, height

	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}

	if targetPixels := targetWidth * targetHeight; targetPixels > maxPixels {
		scale := float64(maxPixels) / float64(targetPixels)
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// ImageDimensions holds image width and height.
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the
// pixel data.
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}
