package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/MalithGihan/torahindex-service/pkg/types"
)

// ExtractionError reports a source file that could not be read or decoded.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return "failed to extract PDF text: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PDFExtractor decodes a PDF file into its plain text.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// ExtractText reads the whole file and returns its concatenated text.
// Pages carries one entry per page with only PageNumber set; per-page text
// is not segmented.
func (e *PDFExtractor) ExtractText(path string) (types.ExtractedContent, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.ExtractedContent{}, &ExtractionError{Path: path, Err: err}
	}
	text, n, err := decode(b)
	if err != nil {
		return types.ExtractedContent{}, &ExtractionError{Path: path, Err: err}
	}

	pages := make([]types.Page, n)
	for i := range pages {
		pages[i] = types.Page{PageNumber: i + 1}
	}
	return types.ExtractedContent{Text: text, PageCount: n, Pages: pages}, nil
}

// decode recovers from panics raised by the pdf package on malformed input.
func decode(b []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", 0, err
	}
	pages = r.NumPage()

	pr, err := r.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, pr); err != nil {
		return "", 0, err
	}
	return buf.String(), pages, nil
}
