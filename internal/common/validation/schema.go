// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult reports the outcome of validating a job payload.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (r *ValidationResult) Error() string {
	if len(r.Errors) == 0 {
		return "payload invalid"
	}
	return fmt.Sprintf("payload invalid: %s: %s", r.Errors[0].Field, r.Errors[0].Message)
}

// ValidateInput checks a raw JSON payload against a JSON schema expressed as
// a Go map (the form stored in the activity registry). A schema compile
// failure is returned as an error; payload violations land in the result.
func ValidateInput(schema map[string]interface{}, payload []byte) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return out, nil
}
