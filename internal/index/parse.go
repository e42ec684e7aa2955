package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/MalithGihan/torahindex-service/pkg/types"
)

// reLine matches "12. term (page 34)"; the number prefix and the trailing
// parenthesised page are optional.
var reLine = regexp.MustCompile(`^[\d.]*\s*(.+?)\s*(?:\(.*?(\d+).*?\))?$`)

var errNullElement = errors.New("array element is null")

// Parse turns raw model output into entries. A JSON array anywhere in the
// text wins; otherwise, or when that array does not decode, each non-blank
// line is read as one entry. Parse never fails.
func Parse(raw string, _ types.IndexKind) []types.IndexEntry {
	if s, ok := bracketed(raw); ok {
		if entries, err := parseStructured(s); err == nil {
			return entries
		}
	}
	return parseLines(raw)
}

// bracketed returns the span from the first '[' to the last ']'.
func bracketed(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(s, ']')
	if end < start {
		return "", false
	}
	return s[start : end+1], true
}

// parseStructured decodes each element as a partial object: term falls back
// to name, description to context, and pageNumbers is kept only when it is
// an array. Non-string term/description values count as absent, and
// elements that are not objects become entries with every field defaulted.
// A null element fails the whole array.
func parseStructured(s string) ([]types.IndexEntry, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	entries := make([]types.IndexEntry, 0, len(items))
	for _, raw := range items {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, errNullElement
		}
		var item map[string]json.RawMessage
		if json.Unmarshal(raw, &item) != nil {
			item = nil
		}
		entries = append(entries, types.IndexEntry{
			Term:        firstString(item, "term", "name"),
			PageNumbers: pageNumbers(item["pageNumbers"]),
			Description: firstString(item, "description", "context"),
		})
	}
	return entries, nil
}

func firstString(item map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := item[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// pageNumbers keeps the positive integral elements of an array and drops the
// rest; anything that is not an array yields an empty slice.
func pageNumbers(raw json.RawMessage) []int {
	out := []int{}
	var arr []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &arr) != nil {
		return out
	}
	for _, el := range arr {
		var f *float64
		if err := json.Unmarshal(el, &f); err != nil || f == nil {
			continue
		}
		if *f != math.Trunc(*f) || *f < 1 || *f > math.MaxInt32 {
			continue
		}
		out = append(out, int(*f))
	}
	return out
}

func parseLines(raw string) []types.IndexEntry {
	entries := []types.IndexEntry{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := reLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		e := types.IndexEntry{Term: strings.TrimSpace(m[1]), PageNumbers: []int{}}
		if m[2] != "" {
			if n, err := strconv.Atoi(m[2]); err == nil {
				e.PageNumbers = []int{n}
			}
		}
		entries = append(entries, e)
	}
	return entries
}
