package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Schema returns the CUE source the configuration is validated against.
func Schema() string {
	return schemaSource
}

// validateSchema unifies the encoded config with #Config and requires a
// concrete result.
func validateSchema(c *Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: errors.Details(err, nil)}
	}
	return nil
}

// ValidationError reports a schema violation.
type ValidationError struct {
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid config: " + e.Details
}
