package reviewapi

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const analysisResultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["overall_score", "breakdown", "recommendations", "detailed_feedback"],
  "properties": {
    "overall_score": {"type": "number"},
    "breakdown": {
      "type": "object",
      "additionalProperties": {"type": "number"}
    },
    "recommendations": {
      "type": "array",
      "items": {"type": "string"}
    },
    "detailed_feedback": {"type": "string"},
    "language": {"type": ["string", "null"]},
    "file_name": {"type": ["string", "null"]}
  }
}`

func compileResultSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.CompileString("analysis_result.schema.json", analysisResultSchema)
	if err != nil {
		return nil, fmt.Errorf("compile analysis result schema: %w", err)
	}
	return schema, nil
}
