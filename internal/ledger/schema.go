package ledger

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/execute_msg.json schemas/query_msg.json
var schemaFS embed.FS

// msgValidator checks outgoing envelopes against the contract's published
// message schemas before anything is signed.
type msgValidator struct {
	execute *jsonschema.Schema
	query   *jsonschema.Schema
}

func newMsgValidator() (*msgValidator, error) {
	execute, err := compileEmbedded("schemas/execute_msg.json")
	if err != nil {
		return nil, err
	}
	query, err := compileEmbedded("schemas/query_msg.json")
	if err != nil {
		return nil, err
	}
	return &msgValidator{execute: execute, query: query}, nil
}

func compileEmbedded(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading embedded schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}
	return schema, nil
}

func (v *msgValidator) validateExecute(envelope json.RawMessage) error {
	return validateRaw(v.execute, envelope)
}

func (v *msgValidator) validateQuery(envelope json.RawMessage) error {
	return validateRaw(v.query, envelope)
}

func validateRaw(schema *jsonschema.Schema, envelope json.RawMessage) error {
	if schema == nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(envelope, &decoded); err != nil {
		return fmt.Errorf("envelope is not valid JSON: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("envelope rejected by contract schema: %w", err)
	}
	return nil
}
