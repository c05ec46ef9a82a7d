package api

import (
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

var supportedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// detectImageType sniffs the upload instead of trusting the client's
// Content-Type header.
func detectImageType(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	contentType := http.DetectContentType(body)
	_, ok := supportedImageTypes[contentType]
	return contentType, ok
}

// attachmentFilename keeps the object key at <prefix>/<documentId>/<name>.
// Names that collapse to a path element are replaced with a generated one.
func attachmentFilename(raw, contentType string) string {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(raw, "\\", "/")))
	switch name {
	case "", ".", "..", "/":
		return uuid.NewString() + supportedImageTypes[contentType]
	}
	return name
}
