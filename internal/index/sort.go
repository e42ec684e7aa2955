package index

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/MalithGihan/torahindex-service/pkg/types"
)

// SortEntries orders entries by term under the collation rules of lang,
// keeping the relative order of equal terms. A collator is not safe for
// concurrent use, so one is built per call.
func SortEntries(entries []types.IndexEntry, lang language.Tag) {
	c := collate.New(lang)
	sort.SliceStable(entries, func(i, j int) bool {
		return c.CompareString(entries[i].Term, entries[j].Term) < 0
	})
}
