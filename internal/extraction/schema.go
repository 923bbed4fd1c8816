package extraction

import "github.com/santhosh-tekuri/jsonschema/v5"

// responseSchema describes what the extraction service must answer with.
// Every key is optional and may be null; unknown keys are ignored.
const responseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "fecha":       {"type": ["string", "null"]},
    "monto":       {"type": ["number", "string", "null"]},
    "categoria":   {"type": ["string", "null"]},
    "descripcion": {"type": ["string", "null"]},
    "tipo_gasto":  {"type": ["string", "null"]},
    "banco":       {"type": ["string", "null"]}
  }
}`

var schema = jsonschema.MustCompileString("extraction-response.json", responseSchema)
