package schema

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var definition string

// TypeAny matches a column of any type.
const TypeAny = "any"

// Column constrains one table column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
	// Source, when set, is the enum domain an enum column must record.
	Source string `json:"source,omitempty"`
}

// Rows bounds the row count. Nil bounds are not checked.
type Rows struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// Schema describes the columns and size a table must have.
type Schema struct {
	Columns []Column `json:"columns"`
	Rows    *Rows    `json:"rows,omitempty"`
	// Closed rejects columns the schema does not name.
	Closed bool `json:"closed"`
	// Ordered requires the named columns to appear in schema order.
	Ordered bool `json:"ordered"`
}

// Compile parses CUE source into a Schema. The source is unified with the
// built-in #Schema definition, so unknown fields, unknown type names and
// negative bounds are rejected with their position in filename.
//
//	columns: [
//		{name: "time", type: "timestamp"},
//		{name: "sym", type: "enum", source: "sym"},
//		{name: "px", type: "float"},
//	]
//	rows: min: 1
func Compile(filename string, src []byte) (*Schema, error) {
	ctx := cuecontext.New()
	def := ctx.CompileString(definition, cue.Filename("schema.cue"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("schema definition: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := def.LookupPath(cue.ParsePath("#Schema")).Unify(v)
	if err := unified.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	var s Schema
	if err := unified.Decode(&s); err != nil {
		return nil, formatCUEError(err)
	}

	seen := make(map[string]bool, len(s.Columns))
	for i, c := range s.Columns {
		if seen[c.Name] {
			return nil, &CompileError{
				Field:   fmt.Sprintf("columns[%d].name", i),
				Message: fmt.Sprintf("duplicate column %q", c.Name),
				Pos:     unified.LookupPath(cue.MakePath(cue.Str("columns"), cue.Index(i))).Pos(),
			}
		}
		seen[c.Name] = true
		if c.Type == "bool" {
			s.Columns[i].Type = "boolean"
		}
	}

	if s.Rows != nil && s.Rows.Min != nil && s.Rows.Max != nil && *s.Rows.Min > *s.Rows.Max {
		return nil, &CompileError{
			Field:   "rows",
			Message: fmt.Sprintf("min %d exceeds max %d", *s.Rows.Min, *s.Rows.Max),
			Pos:     unified.LookupPath(cue.ParsePath("rows")).Pos(),
		}
	}

	return &s, nil
}

// CompileError is a schema source error, positioned when CUE knows where it
// happened.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}
