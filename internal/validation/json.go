package validation

import (
	"encoding/json"

	validation "github.com/jellydator/validation"
)

// JSONDocument validates that a json.RawMessage holds one well-formed JSON value.
var JSONDocument = validation.By(func(value interface{}) error {
	raw, ok := value.(json.RawMessage)
	if !ok {
		return validation.NewError("validation_json_type", "must be a JSON document")
	}
	if len(raw) == 0 {
		return nil // Let Required handle empty documents
	}
	if !json.Valid(raw) {
		return validation.NewError("validation_json", "must be valid JSON")
	}
	return nil
})
