package ingest

import (
	"bytes"
	"path/filepath"
	"strings"
)

var pdfMagic = []byte("%PDF")

// DetectType classifies a file by extension: "pdf", "raster" or "unknown".
func DetectType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		return "pdf"
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return "raster"
	default:
		return "unknown"
	}
}

// IsPDF accepts an upload when either the declared content type or the
// leading bytes identify a PDF.
func IsPDF(contentType string, head []byte) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "application/pdf" {
		return true
	}
	return bytes.HasPrefix(head, pdfMagic)
}
