// Package media generates and caches thumbnails for image and video files.
//
// Image thumbnails decode in-process with constrained dimensions to bound
// memory use; video thumbnails grab a single frame through ffmpeg. Results
// are cached as JPEG files keyed by source path.
package media
