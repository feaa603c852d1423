package team

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

var (
	schemaOnce sync.Once
	schemaVal  cue.Value
	schemaErr  error
)

func orgSchema() (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		compiled := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := compiled.Err(); err != nil {
			schemaErr = fmt.Errorf("compile embedded schema: %w", err)
			return
		}
		schemaVal = compiled.LookupPath(cue.ParsePath("#Org"))
		if err := schemaVal.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Org in embedded schema: %w", err)
		}
	})
	return schemaVal, schemaErr
}

// Validate checks a loaded org definition against the embedded CUE
// schema. A definition that fails validation is a fatal configuration
// error; the reconciler never diffs against a malformed snapshot.
func Validate(org Org) error {
	schema, err := orgSchema()
	if err != nil {
		return err
	}
	ctx := schema.Context()
	unified := schema.Unify(ctx.Encode(org))
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("org %q: %s", org.Name, cueerrors.Details(err, nil))
	}
	return nil
}
