// Package export renders a generated index as a downloadable document.
package export

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/MalithGihan/torahindex-service/pkg/types"
)

// Renderer turns an index into document bytes.
type Renderer interface {
	Render(idx types.GeneratedIndex) ([]byte, error)
	// Extension returns the file extension, e.g. ".pdf".
	Extension() string
	ContentType() string
}

const (
	FormatPDF      = "pdf"
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Options configures renderers that need external resources.
type Options struct {
	// FontPath is a UTF-8 TrueType font for PDF output. Empty means the
	// embedded DejaVu Sans Condensed.
	FontPath string
}

// New returns the renderer for format; the empty format means PDF.
func New(format string, opts Options) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatPDF:
		return NewPDFRenderer(opts.FontPath), nil
	case FormatMarkdown, "markdown":
		return MarkdownRenderer{}, nil
	case FormatJSON:
		return JSONRenderer{}, nil
	case FormatYAML, "yml":
		return YAMLRenderer{}, nil
	default:
		return nil, eris.Errorf("unsupported export format %q", format)
	}
}

// Title is the heading of an exported index, "מפתח <kind>".
func Title(idx types.GeneratedIndex) string {
	t := "מפתח " + string(idx.Type)
	if idx.BookName != "" {
		t += " – " + idx.BookName
	}
	return t
}

// PageInfo renders " (1, 2)" or "" when there are no pages.
func PageInfo(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// FormatEntry is the plain-text form of one entry: the term with its pages,
// then the description on its own line when present.
func FormatEntry(e types.IndexEntry) string {
	s := e.Term + PageInfo(e.PageNumbers)
	if e.Description != "" {
		s += "\n" + e.Description
	}
	return s
}
