package schema

import (
	"fmt"

	"github.com/roach88/kbind/internal/codec"
	"github.com/roach88/kbind/internal/kval"
)

// Violation codes.
const (
	CodeNotTable        = "E201"
	CodeMissingColumn   = "E202"
	CodeExtraColumn     = "E203"
	CodeColumnType      = "E204"
	CodeColumnOrder     = "E205"
	CodeEnumSource      = "E206"
	CodeRowCount        = "E207"
	CodeDuplicateColumn = "E208"
)

// Violation is one way a value fails its schema.
type Violation struct {
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v Violation) Error() string {
	if v.Column == "" {
		return fmt.Sprintf("%s: %s", v.Code, v.Message)
	}
	return fmt.Sprintf("%s: column %s: %s", v.Code, v.Column, v.Message)
}

// CheckValue checks v, which must be a table.
func (s *Schema) CheckValue(v kval.Value) []Violation {
	t, ok := v.(kval.Table)
	if !ok {
		return []Violation{{
			Code:    CodeNotTable,
			Message: fmt.Sprintf("expected table, got %s", codec.TypeName(v)),
		}}
	}
	return s.Check(t)
}

// Check returns every violation of s in t, in column order followed by the
// row count. A conforming table yields nil.
func (s *Schema) Check(t kval.Table) []Violation {
	var out []Violation

	names := t.ColumnNames()
	index := make(map[string]int64, len(names))
	for i, name := range names {
		if _, dup := index[name]; dup {
			out = append(out, Violation{Column: name, Code: CodeDuplicateColumn, Message: "duplicate column"})
			continue
		}
		index[name] = int64(i)
	}

	named := make(map[string]bool, len(s.Columns))
	last := int64(-1)
	for _, c := range s.Columns {
		named[c.Name] = true
		i, ok := index[c.Name]
		if !ok {
			out = append(out, Violation{Column: c.Name, Code: CodeMissingColumn, Message: "missing"})
			continue
		}
		if s.Ordered {
			if i < last {
				out = append(out, Violation{
					Column:  c.Name,
					Code:    CodeColumnOrder,
					Message: fmt.Sprintf("at position %d, expected after %s", i, names[last]),
				})
			} else {
				last = i
			}
		}
		out = append(out, checkColumn(t, i, c)...)
	}

	if s.Closed {
		for _, name := range names {
			if !named[name] {
				out = append(out, Violation{Column: name, Code: CodeExtraColumn, Message: "not in schema"})
			}
		}
	}

	if s.Rows != nil {
		n := t.Len()
		if s.Rows.Min != nil && n < *s.Rows.Min {
			out = append(out, Violation{Code: CodeRowCount, Message: fmt.Sprintf("%d rows, want at least %d", n, *s.Rows.Min)})
		}
		if s.Rows.Max != nil && n > *s.Rows.Max {
			out = append(out, Violation{Code: CodeRowCount, Message: fmt.Sprintf("%d rows, want at most %d", n, *s.Rows.Max)})
		}
	}
	return out
}

func checkColumn(t kval.Table, i int64, c Column) []Violation {
	cols, _ := t.Dict().Values().(kval.CompoundList)
	col := cols[i]

	got := columnType(col)
	if c.Type != TypeAny && got != c.Type {
		return []Violation{{Column: c.Name, Code: CodeColumnType, Message: fmt.Sprintf("type %s, want %s", got, c.Type)}}
	}
	if e, ok := col.(kval.Enum); ok && c.Source != "" && e.Source != c.Source {
		src := e.Source
		if src == "" {
			src = "unknown"
		}
		return []Violation{{Column: c.Name, Code: CodeEnumSource, Message: fmt.Sprintf("enumerated over %s, want %s", src, c.Source)}}
	}
	return nil
}

// columnType names a column by its element type; a string column holds
// chars.
func columnType(col kval.Value) string {
	name := codec.TypeName(col)
	if name == codec.TypeString {
		return codec.TypeChar
	}
	return name
}
