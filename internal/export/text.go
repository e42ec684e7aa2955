package export

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/MalithGihan/torahindex-service/pkg/types"
)

type MarkdownRenderer struct{}

func (MarkdownRenderer) Render(idx types.GeneratedIndex) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("# " + Title(idx) + "\n\n")
	for _, e := range idx.Entries {
		b.WriteString("- **" + e.Term + "**" + PageInfo(e.PageNumbers) + "\n")
		if e.Description != "" {
			b.WriteString("  _" + e.Description + "_\n")
		}
	}
	return b.Bytes(), nil
}

func (MarkdownRenderer) Extension() string   { return ".md" }
func (MarkdownRenderer) ContentType() string { return "text/markdown; charset=utf-8" }

type JSONRenderer struct{}

func (JSONRenderer) Render(idx types.GeneratedIndex) ([]byte, error) {
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "encoding json export")
	}
	return append(b, '\n'), nil
}

func (JSONRenderer) Extension() string   { return ".json" }
func (JSONRenderer) ContentType() string { return "application/json; charset=utf-8" }

type YAMLRenderer struct{}

func (YAMLRenderer) Render(idx types.GeneratedIndex) ([]byte, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(idx); err != nil {
		return nil, eris.Wrap(err, "encoding yaml export")
	}
	if err := enc.Close(); err != nil {
		return nil, eris.Wrap(err, "encoding yaml export")
	}
	return b.Bytes(), nil
}

func (YAMLRenderer) Extension() string   { return ".yaml" }
func (YAMLRenderer) ContentType() string { return "application/yaml; charset=utf-8" }
