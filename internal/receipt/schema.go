package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchema describes the serialized form of a Record.
func recordSchema() map[string]any {
	date := map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendor_name":          map[string]any{"type": "string", "minLength": 1},
			"transaction_date":     date,
			"amount":               map[string]any{"type": "string", "pattern": `^\d+(\.\d{1,3})?$`},
			"currency":             map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
			"category_name":        map[string]any{"type": "string"},
			"billing_period_start": date,
			"billing_period_end":   date,
			"raw_text":             map[string]any{"type": "string"},
		},
		"required":          []string{"vendor_name", "transaction_date", "amount", "currency", "raw_text"},
		"dependentRequired": map[string]any{
			"billing_period_start": []string{"billing_period_end"},
			"billing_period_end":   []string{"billing_period_start"},
		},
	}
}

func compileRecordSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(recordSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("record.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("record.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// checkShape validates the JSON form of r against the record schema.
func checkShape(schema *jsonschema.Schema, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}
