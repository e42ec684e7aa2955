package export

import (
	"bytes"
	_ "embed"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"github.com/rotisserie/eris"

	"github.com/MalithGihan/torahindex-service/pkg/types"
)

const fontFamily = "indexfont"

// defaultFont covers Latin and Hebrew; it is used when no font is configured.
//
//go:embed fonts/DejaVuSansCondensed.ttf
var defaultFont []byte

// PDFRenderer lays an index out on A4 pages, right-aligned for Hebrew.
type PDFRenderer struct {
	fontPath string
}

func NewPDFRenderer(fontPath string) *PDFRenderer {
	return &PDFRenderer{fontPath: fontPath}
}

func (r *PDFRenderer) Render(idx types.GeneratedIndex) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(Title(idx), true)

	if r.fontPath != "" {
		pdf.AddUTF8Font(fontFamily, "", r.fontPath)
	} else {
		pdf.AddUTF8FontFromBytes(fontFamily, "", defaultFont)
	}
	if err := pdf.Error(); err != nil {
		return nil, eris.Wrap(err, "loading export font")
	}

	pdf.AddPage()
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	width := pageW - left - right

	line := func(text string, size, indent, height float64) {
		pdf.SetFont(fontFamily, "", size)
		align := "L"
		if isRTL(text) {
			align = "R"
			text = visual(text)
		}
		pdf.SetX(left)
		if align == "L" {
			pdf.SetX(left + indent)
		}
		pdf.MultiCell(width-indent, height, text, "", align, false)
	}

	line(Title(idx), 14, 0, 8)
	pdf.Ln(4)
	for _, e := range idx.Entries {
		line(e.Term+PageInfo(e.PageNumbers), 12, 7, 6)
		if e.Description != "" {
			pdf.SetTextColor(90, 90, 90)
			line(e.Description, 11, 14, 5)
			pdf.SetTextColor(0, 0, 0)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, eris.Wrap(err, "rendering pdf")
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) Extension() string   { return ".pdf" }
func (r *PDFRenderer) ContentType() string { return "application/pdf" }

// isRTL reports whether the first strong character is Hebrew or Arabic.
func isRTL(s string) bool {
	for _, ch := range s {
		switch {
		case unicode.In(ch, unicode.Hebrew, unicode.Arabic):
			return true
		case unicode.IsLetter(ch):
			return false
		}
	}
	return false
}

// visual converts a right-to-left line from logical to display order for a
// renderer that only draws left to right. Runs of digits and Latin letters
// keep their internal order; brackets are mirrored.
func visual(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in))
	for i := len(in) - 1; i >= 0; {
		if !ltrRune(in[i]) {
			out = append(out, mirror(in[i]))
			i--
			continue
		}
		j := i
		for j > 0 && (ltrRune(in[j-1]) || (in[j-1] == ' ' || in[j-1] == '.' || in[j-1] == ',') && j-2 >= 0 && ltrRune(in[j-2])) {
			j--
		}
		out = append(out, in[j:i+1]...)
		i = j - 1
	}
	return string(out)
}

func ltrRune(ch rune) bool {
	return unicode.IsDigit(ch) || (unicode.IsLetter(ch) && unicode.Is(unicode.Latin, ch))
}

func mirror(ch rune) rune {
	switch ch {
	case '(':
		return ')'
	case ')':
		return '('
	case '[':
		return ']'
	case ']':
		return '['
	}
	return ch
}
