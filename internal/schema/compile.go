package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	intentSchemaID = "docfold://schemas/canonical_intent.schema.json"
	docopsSchemaID = "docfold://schemas/docops_plan.schema.json"
)

var (
	compileOnce  sync.Once
	compileErr   error
	intentSchema *jsonschema.Schema
	docopsSchema *jsonschema.Schema
)

func compiledSchemas() (*jsonschema.Schema, *jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		for id, path := range map[string]string{
			intentSchemaID: "schemas/canonical_intent.schema.json",
			docopsSchemaID: "schemas/docops_plan.schema.json",
		} {
			data, err := schemaFS.ReadFile(path)
			if err != nil {
				compileErr = fmt.Errorf("read embedded schema %s: %w", path, err)
				return
			}
			if err := compiler.AddResource(id, bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("add schema %s: %w", id, err)
				return
			}
		}
		if intentSchema, compileErr = compiler.Compile(intentSchemaID); compileErr != nil {
			return
		}
		docopsSchema, compileErr = compiler.Compile(docopsSchemaID)
	})
	return intentSchema, docopsSchema, compileErr
}

// validateAgainst runs the structural JSON Schema check and flattens the
// validator's output into one line per leaf failure.
func validateAgainst(sch *jsonschema.Schema, raw []byte) ([]string, error) {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, err
	}
	err := sch.Validate(instance)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}, nil
	}
	return flattenValidation(ve), nil
}

func flattenValidation(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, ve.Message)}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, flattenValidation(c)...)
	}
	return out
}
