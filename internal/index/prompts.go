package index

import (
	"fmt"

	"github.com/MalithGihan/torahindex-service/pkg/types"
)

const formatDirective = "Format the response as a JSON array with objects containing: term (%s), pageNumbers (%s), and description (%s)."

type promptSet struct {
	system  string
	task    string
	term    string
	pages   string
	context string
}

var prompts = map[types.IndexKind]promptSet{
	types.KindSources: {
		system:  "You are an expert in Torah and Jewish texts. Create detailed indexes of sources from Torah books.",
		task:    "Please analyze the following Torah book text and create a comprehensive index of sources (Tanach references, Talmudic sources, etc.).",
		term:    "the source",
		pages:   "array of page numbers where it appears",
		context: "brief context",
	},
	types.KindTopics: {
		system:  "You are an expert in Torah and Jewish texts. Create organized topical indexes from Torah books.",
		task:    "Please analyze the following Torah book text and create a comprehensive topical index.",
		term:    "the topic",
		pages:   "array of page numbers",
		context: "brief context",
	},
	types.KindPersons: {
		system:  "You are an expert in Torah and Jewish texts. Create accurate indexes of persons mentioned in Torah books.",
		task:    "Please analyze the following Torah book text and create an index of persons mentioned (biblical figures, rabbis, authors, etc.).",
		term:    "the person's name",
		pages:   "array of page numbers",
		context: "brief context/role",
	},
}

func systemPrompt(kind types.IndexKind) string {
	return prompts[kind].system
}

// userPrompt embeds text, which the caller has already truncated.
func userPrompt(kind types.IndexKind, text string) string {
	p := prompts[kind]
	return p.task + "\n\n" +
		fmt.Sprintf(formatDirective, p.term, p.pages, p.context) + "\n\n" +
		"Text: " + text
}

// truncate keeps the first max characters (runes) of s.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
