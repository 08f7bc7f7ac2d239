package mediatypes

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// FileType represents the category of a file.
type FileType string

const (
	// FileTypeFolder represents a directory.
	FileTypeFolder FileType = "folder"
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeAudio represents an audio file.
	FileTypeAudio FileType = "audio"
	// FileTypeText represents a plain text file.
	FileTypeText FileType = "text"
	// FileTypePDF represents a PDF document.
	FileTypePDF FileType = "pdf"
	// FileTypeArchive represents a compressed archive.
	FileTypeArchive FileType = "archive"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".svg":  true,
	".ico":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".aac":  true,
	".ogg":  true,
	".oga":  true,
	".m4a":  true,
	".wma":  true,
	".opus": true,
}

// TextExtensions maps file extensions to whether they are treated as text.
var TextExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".srt":  true,
	".vtt":  true,
	".nfo":  true,
	".log":  true,
	".json": true,
	".xml":  true,
	".yaml": true,
	".yml":  true,
}

// ArchiveExtensions maps file extensions to whether they are archives.
var ArchiveExtensions = map[string]bool{
	".zip": true,
	".rar": true,
	".7z":  true,
	".tar": true,
	".gz":  true,
	".bz2": true,
	".xz":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	// Audio
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".m4a":  "audio/mp4",
	".wma":  "audio/x-ms-wma",
	".opus": "audio/opus",

	// Documents and text
	".pdf":  "application/pdf",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".srt":  "text/plain; charset=utf-8",
	".vtt":  "text/vtt; charset=utf-8",
	".json": "application/json",
	".xml":  "application/xml",

	// Archives
	".zip": "application/zip",
	".rar": "application/vnd.rar",
	".7z":  "application/x-7z-compressed",
	".tar": "application/x-tar",
	".gz":  "application/gzip",
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	switch {
	case ImageExtensions[ext]:
		return FileTypeImage
	case VideoExtensions[ext]:
		return FileTypeVideo
	case AudioExtensions[ext]:
		return FileTypeAudio
	case TextExtensions[ext]:
		return FileTypeText
	case ext == ".pdf":
		return FileTypePDF
	case ArchiveExtensions[ext]:
		return FileTypeArchive
	}
	return FileTypeOther
}

// GetFileTypeForPath returns the FileType for a path based on its extension.
func GetFileTypeForPath(path string) FileType {
	return GetFileType(strings.ToLower(filepath.Ext(path)))
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// DetectMimeType resolves the MIME type for a file, preferring the explicit
// extension table and falling back to content sniffing for extensions the
// table does not cover.
func DetectMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	if _, err := os.Stat(path); err == nil {
		if detected, err := mimetype.DetectFile(path); err == nil {
			return detected.String()
		}
	}
	return "application/octet-stream"
}

// IsMediaFile returns true if the extension represents a streamable media file.
func IsMediaFile(ext string) bool {
	t := GetFileType(ext)
	return t == FileTypeImage || t == FileTypeVideo || t == FileTypeAudio
}
