package types

import (
	"strings"
	"time"
)

// IndexKind selects which prompt is sent to the model.
type IndexKind string

const (
	KindSources IndexKind = "sources"
	KindTopics  IndexKind = "topics"
	KindPersons IndexKind = "persons"
)

var kinds = []IndexKind{KindSources, KindTopics, KindPersons}

// Kinds returns every supported index kind in declaration order.
func Kinds() []IndexKind {
	out := make([]IndexKind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseKind accepts the wire name of a kind, case-insensitively.
func ParseKind(s string) (IndexKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

func (k IndexKind) Valid() bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}

type IndexEntry struct {
	Term        string `json:"term" yaml:"term"`
	PageNumbers []int  `json:"pageNumbers" yaml:"pageNumbers"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type GeneratedIndex struct {
	Type        IndexKind    `json:"type" yaml:"type"`
	Entries     []IndexEntry `json:"entries" yaml:"entries"`
	GeneratedAt time.Time    `json:"generatedAt" yaml:"generatedAt"`
	BookName    string       `json:"bookName,omitempty" yaml:"bookName,omitempty"`
}

type Page struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"` // always empty; see ingest.ExtractText
}

type ExtractedContent struct {
	Text      string `json:"text"`
	PageCount int    `json:"pageCount"`
	Pages     []Page `json:"pages"`
}
