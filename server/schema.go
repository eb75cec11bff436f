package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// scenarioSchemaJSON constrains /process_scenario request bodies: a
// non-empty narrative plus an optional room-layout update.
const scenarioSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["description"],
	"properties": {
		"description": {"type": "string", "minLength": 1},
		"rooms": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"x": {"type": "number"},
					"z": {"type": "number"}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

var scenarioSchema = jsonschema.MustCompileString("process_scenario.json", scenarioSchemaJSON)

// validateScenario checks a raw request body against the scenario schema.
func validateScenario(body []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := scenarioSchema.Validate(v); err != nil {
		return fmt.Errorf("invalid scenario payload: %w", err)
	}
	return nil
}
