package assembler

import (
	"strings"

	"gradegate/internal/domain"
)

// DecideEncoding chooses inline vs referenced transport for a non-text part.
// Documents, audio, video, and vector images always go referenced. Raster
// images go referenced only above inlineImageLimit; the boundary itself is
// inlined. Everything else defaults to inline.
func DecideEncoding(mimeType string, size int64, inlineImageLimit int64) domain.Encoding {
	mt := strings.ToLower(mimeType)

	switch {
	case strings.HasPrefix(mt, "audio/"), strings.HasPrefix(mt, "video/"):
		return domain.EncodingReferenced
	case mt == "image/svg+xml":
		return domain.EncodingReferenced
	case isDocumentMime(mt):
		return domain.EncodingReferenced
	case strings.HasPrefix(mt, "image/"):
		if size > inlineImageLimit {
			return domain.EncodingReferenced
		}
		return domain.EncodingInline
	default:
		return domain.EncodingInline
	}
}

func isDocumentMime(mt string) bool {
	switch mt {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/rtf":
		return true
	}
	return false
}
