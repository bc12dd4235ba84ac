package kval

import (
	"github.com/roach88/kbind/internal/k"
)

// Table is a dictionary of symbol column names to a compound list of
// equal-length columns.
type Table struct {
	dict Dict
}

type tableConfig struct {
	checkColumns bool
}

// TableOption configures NewTable.
type TableOption func(*tableConfig)

// WithoutColumnCheck skips the scan that verifies every column is a list of
// the table's length. Use it only when the columns are known to be sound;
// GetRow still reports a short column as out of range.
func WithoutColumnCheck() TableOption {
	return func(c *tableConfig) {
		c.checkColumns = false
	}
}

// NewTable builds a table from a dictionary whose keys are a symbol list
// and whose values are a compound list of columns.
func NewTable(d Dict, opts ...TableOption) (Table, error) {
	const op = "new_table"
	cfg := tableConfig{checkColumns: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	if s, ok := d.keys.(Symbol); !ok || !s.IsList() {
		return Table{}, newError(ErrCodeTypeMismatch, op, "keys must be a symbol list")
	}
	cols, ok := d.values.(CompoundList)
	if !ok {
		return Table{}, newError(ErrCodeTypeMismatch, op, "columns must be in a compound list")
	}
	if cfg.checkColumns && len(cols) > 0 {
		rows := cols[0].Len()
		for _, col := range cols {
			if !col.IsList() || col.Len() != rows {
				return Table{}, newError(ErrCodeShapeViolation, op, "invalid table, all columns must be lists with the same length")
			}
		}
	}
	return Table{dict: d}, nil
}

// newTableFromK wraps a table the runtime built. A single column that the
// runtime stored bare is wrapped in a one-element compound list.
func newTableFromK(raw *k.K) Table {
	invariant(raw.T == k.TypeTable, "table dispatch on type %d", raw.T)
	target := k.Target(raw)
	invariant(target != nil && target.T.IsDict(), "table without a dictionary")
	d := newDictFromK(target)
	if _, ok := d.values.(CompoundList); !ok {
		d.values = CompoundList{d.values}
	}
	return Table{dict: d}
}

// Dict returns the column dictionary.
func (t Table) Dict() Dict { return t.dict }

func (t Table) columns() CompoundList {
	cols, _ := t.dict.values.(CompoundList)
	return cols
}

// NumColumns returns the number of columns.
func (t Table) NumColumns() int { return len(t.columns()) }

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	s, _ := t.dict.keys.(Symbol)
	return append([]string(nil), s.Values()...)
}

// Len returns the row count: the length of the first column, or 0 for a
// table without columns.
func (t Table) Len() int64 {
	cols := t.columns()
	if len(cols) == 0 {
		return 0
	}
	return cols[0].Len()
}

func (Table) Type() k.Type     { return k.TypeTable }
func (Table) IsList() bool     { return false }
func (Table) IsAtom() bool     { return false }
func (t Table) String() string { return "+" + formatDict(t.dict) }
func (t Table) clone() Value   { return Table{dict: t.dict.clone().(Dict)} }

func (t Table) equal(o Value) bool {
	ot, ok := o.(Table)
	return ok && t.dict.equal(ot.dict)
}

// GetColumn returns an owned copy of column i. For an enum column the
// result's source is enumSource when given, else the source recorded on the
// column; with neither the call fails.
func (t Table) GetColumn(i int64, enumSource string) (Value, error) {
	const op = "get_column"
	cols := t.columns()
	if i < 0 || i >= int64(len(cols)) {
		return nil, newError(ErrCodeOutOfRange, op, "invalid column index")
	}
	col := cols[i]
	if !col.IsList() {
		return nil, newError(ErrCodeTypeMismatch, op, "columns must be lists")
	}
	if e, ok := col.(Enum); ok {
		src := enumSource
		if src == "" {
			src = e.Source
		}
		if src == "" {
			return nil, newError(ErrCodeMissingEnumSource, op, "enum_source must be provided for enumerated columns")
		}
		return Enum{Data: e.Data.Clone(), Source: src}, nil
	}
	return Clone(col), nil
}

// GetRow returns row i as a dictionary from column names to atoms (or to
// the element of a compound column). enumSources is consumed positionally:
// the n-th enum column uses enumSources[n] when present and non-empty, else
// its recorded source.
func (t Table) GetRow(i int64, enumSources []string) (Dict, error) {
	const op = "get_row"
	cols := t.columns()
	if len(cols) > 0 && (i < 0 || i >= t.Len()) {
		return Dict{}, newError(ErrCodeOutOfRange, op, "index out of bounds")
	}

	short := func() error {
		return newError(ErrCodeOutOfRange, op, "index out of bounds, columns were not the same length")
	}
	row := make(CompoundList, len(cols))
	enumIndex := 0
	for c, col := range cols {
		if !col.IsList() {
			return Dict{}, newError(ErrCodeTypeMismatch, op, "columns must each be lists, within a compound list")
		}
		switch col := col.(type) {
		case Enum:
			src := col.Source
			if enumIndex < len(enumSources) && enumSources[enumIndex] != "" {
				src = enumSources[enumIndex]
			}
			enumIndex++
			if src == "" {
				return Dict{}, newError(ErrCodeMissingEnumSource, op, "enum source must be provided for enumerated columns")
			}
			x, ok := col.At(i)
			if !ok {
				return Dict{}, short()
			}
			row[c] = Enum{Data: Atom(x), Source: src}
		case CompoundList:
			if i < 0 || i >= int64(len(col)) {
				return Dict{}, short()
			}
			row[c] = Clone(col[i])
		default:
			v, ok := elementAt(col, i)
			if !ok {
				return Dict{}, short()
			}
			row[c] = v
		}
	}
	return NewDict(Clone(t.dict.keys), row)
}
