package blobstore

import (
	"mime"
	"path"
	"strings"
)

// DefaultContentType is used when nothing better is known.
const DefaultContentType = "application/octet-stream"

// extensionTypes is the fixed extension → MIME table used for delivery.
var extensionTypes = map[string]string{
	"avif": "image/avif",
	"bmp":  "image/bmp",
	"gif":  "image/gif",
	"heic": "image/heic",
	"ico":  "image/x-icon",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"svg":  "image/svg+xml",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",

	"pdf":  "application/pdf",
	"json": "application/json",
	"xml":  "application/xml",
	"zip":  "application/zip",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"bin":  DefaultContentType,

	"txt":  "text/plain",
	"csv":  "text/csv",
	"htm":  "text/html",
	"html": "text/html",
	"css":  "text/css",
	"js":   "text/javascript",
	"vcf":  "text/vcard",

	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"webm": "video/webm",
}

// canonicalExtensions picks one extension per MIME type where several exist.
var canonicalExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/pjpeg":     "jpg",
	"image/jpg":       "jpg",
	"image/svg+xml":   "svg",
	"image/tiff":      "tif",
	"image/x-icon":    "ico",
	"text/plain":      "txt",
	"text/html":       "html",
	"text/vcard":      "vcf",
	"audio/mpeg":      "mp3",
	"video/quicktime": "mov",
}

// ContentTypeForExtension looks ext (with or without the dot) up in the table.
func ContentTypeForExtension(ext string) (string, bool) {
	ct, ok := extensionTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ct, ok
}

// ContentTypeForKey infers a key's content type from its extension.
func ContentTypeForKey(key string) string {
	if ct, ok := ContentTypeForExtension(path.Ext(key)); ok {
		return ct
	}
	return DefaultContentType
}

// IsImage reports whether user agents render contentType inline by default.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// normalizeMediaType lower-cases contentType and strips parameters.
func normalizeMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// extensionForType returns the extension for a normalised media type.
func extensionForType(mediaType string) string {
	if ext, ok := canonicalExtensions[mediaType]; ok {
		return ext
	}
	_, sub, ok := strings.Cut(mediaType, "/")
	if !ok {
		return ""
	}
	if base, _, found := strings.Cut(sub, "+"); found {
		sub = base
	}
	sub = sanitizeExtension(sub)
	if _, known := extensionTypes[sub]; known {
		return sub
	}
	if strings.HasPrefix(sub, "x-") || strings.HasPrefix(sub, "vnd") || len(sub) > 8 {
		return ""
	}
	return sub
}

func sanitizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
