package httpapi

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed request.schema.json
var requestSchemaJSON []byte

const requestSchemaURL = "schema://task-request.json"

// bodyValidator checks request bodies against a compiled JSON schema.
type bodyValidator struct {
	schema *jsonschema.Schema
}

func newBodyValidator() (*bodyValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(requestSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse request schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(requestSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add request schema: %w", err)
	}
	sch, err := c.Compile(requestSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	return &bodyValidator{schema: sch}, nil
}

// Validate parses body and validates it.
func (v *bodyValidator) Validate(body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("request body is empty")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return fmt.Errorf("request body does not match schema: %w", err)
	}
	return nil
}
