package llm

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"
)

// Mock answers offline with a JSON array built from the capitalised or
// non-Latin words of the prompt text, so the service can run without a key.
type Mock struct {
	MaxEntries int
}

func (m Mock) Complete(_ context.Context, req ChatRequest) (string, error) {
	limit := m.MaxEntries
	if limit <= 0 {
		limit = 20
	}
	text := req.User
	if i := strings.LastIndex(text, "Text:"); i >= 0 {
		text = text[i+len("Text:"):]
	}

	seen := map[string]bool{}
	var out []map[string]any
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '"'
	}) {
		w = strings.Trim(w, `'"`)
		if len([]rune(w)) < 3 || seen[w] || !candidate(w) {
			continue
		}
		seen[w] = true
		out = append(out, map[string]any{
			"term":        w,
			"pageNumbers": []int{},
			"description": "generator: mock",
		})
		if len(out) == limit {
			break
		}
	}
	if out == nil {
		out = []map[string]any{}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func candidate(w string) bool {
	r := []rune(w)[0]
	return unicode.IsUpper(r) || (unicode.IsLetter(r) && r > unicode.MaxLatin1)
}
