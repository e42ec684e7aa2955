package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const exportSchemaURL = "file:///schema/export_request.schema.json"

//go:embed schema/export_request.schema.json
var exportSchema []byte

var (
	once    sync.Once
	schema  *jsonschema.Schema
	loadErr error
)

func load() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(exportSchemaURL, bytes.NewReader(exportSchema)); err != nil {
		loadErr = err
		return
	}
	s, err := c.Compile(exportSchemaURL)
	if err != nil {
		loadErr = err
		return
	}
	schema = s
}

// ExportRequest validates a raw export request body against the schema.
func ExportRequest(body []byte) error {
	once.Do(load)
	if loadErr != nil {
		return loadErr
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
