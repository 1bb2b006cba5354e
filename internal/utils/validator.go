package utils

import (
	"errors"
	"mime/multipart"
	"strings"
)

const maxUploadBytes = 50 * 1024 * 1024

var allowedTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"application/pdf": true,
	"text/plain":      true,
	"application/zip": true,
}

var (
	ErrFileSize    = errors.New("file size not allowed")
	ErrContentType = errors.New("invalid content type")
)

func ValidateFileHeader(h *multipart.FileHeader) error {
	if h.Size == 0 || h.Size > maxUploadBytes {
		return ErrFileSize
	}
	ct := h.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !allowedTypes[ct] {
		return ErrContentType
	}
	return nil
}

func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
