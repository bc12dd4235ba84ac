package codec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/kbind/internal/k"
	"github.com/roach88/kbind/internal/kval"
)

var (
	// ErrDescriptor is wrapped by every error caused by a malformed descriptor.
	ErrDescriptor = errors.New("invalid value descriptor")

	// ErrUnsupported is returned when a value has no descriptor form.
	ErrUnsupported = errors.New("value has no descriptor form")
)

// Descriptor is the YAML/JSON form of a value.
//
// Scalar types carry either Atom or List; a descriptor with neither is an
// empty list. Elements are numbers, strings or booleans, and every
// integer-backed type also accepts q's "0N", "0W" and "-0W" (floats "0n",
// "0w", "-0w"). Temporal types accept the text Format prints as well as
// their raw payload.
type Descriptor struct {
	Type    string                `yaml:"type" json:"type" validate:"required,qtype"`
	Atom    any                   `yaml:"atom,omitempty" json:"atom,omitempty"`
	List    []any                 `yaml:"list,omitempty" json:"list,omitempty"`
	Source  string                `yaml:"source,omitempty" json:"source,omitempty"`
	Items   []Descriptor          `yaml:"items,omitempty" json:"items,omitempty" validate:"dive"`
	Keys    *Descriptor           `yaml:"keys,omitempty" json:"keys,omitempty" validate:"required_if=Type dict"`
	Values  *Descriptor           `yaml:"values,omitempty" json:"values,omitempty" validate:"required_if=Type dict"`
	Columns map[string]Descriptor `yaml:"columns,omitempty" json:"columns,omitempty" validate:"dive"`
	Order   []string              `yaml:"order,omitempty" json:"order,omitempty"`
	Sorted  bool                  `yaml:"sorted,omitempty" json:"sorted,omitempty"`
}

// Structural type names. Scalar types use the q names ("long", "symbol"...).
const (
	TypeString   = "string"
	TypeCompound = "compound"
	TypeDict     = "dict"
	TypeTable    = "table"
	TypeNull     = "null"
	TypeError    = "error"
	TypeChar     = "char"
	TypeEnum     = "enum"
)

var descriptorValidate *validator.Validate

func init() {
	descriptorValidate = validator.New()
	_ = descriptorValidate.RegisterValidation("qtype", func(fl validator.FieldLevel) bool {
		return KnownType(fl.Field().String())
	})
}

// KnownType reports whether name is a descriptor type.
func KnownType(name string) bool {
	switch name {
	case TypeString, TypeCompound, TypeDict, TypeTable, TypeNull, TypeError:
		return true
	}
	_, ok := scalarType(name)
	return ok
}

func scalarType(name string) (k.Type, bool) {
	if name == "bool" {
		return k.TypeBoolAtom, true
	}
	return k.ParseType(name)
}

// Validate checks the static shape of d and all nested descriptors.
func (d Descriptor) Validate() error {
	if err := descriptorValidate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrDescriptor, err)
	}
	return nil
}

// Parse reads a descriptor from YAML (or JSON, which YAML accepts).
func Parse(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrDescriptor, err)
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// ParseValue reads a descriptor and decodes it.
func ParseValue(data []byte) (kval.Value, error) {
	d, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Decode(d)
}

// UnmarshalYAML reads d, letting the bare word null name the null type
// even though YAML resolves it to a null scalar.
func (d *Descriptor) UnmarshalYAML(n *yaml.Node) error {
	type plain Descriptor
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if d.Type != "" || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Value == "type" && val.Tag == "!!null" && val.Value != "" {
			d.Type = TypeNull
		}
	}
	return nil
}

// Marshal renders d as YAML.
func Marshal(d Descriptor) ([]byte, error) {
	return yaml.Marshal(d)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDescriptor, fmt.Sprintf(format, args...))
}

// Decode builds the value d describes.
func Decode(d Descriptor) (kval.Value, error) {
	switch d.Type {
	case TypeNull:
		return kval.Null{}, nil
	case TypeError:
		s, err := text(d.Atom)
		if err != nil {
			return nil, err
		}
		return kval.ErrorValue(s), nil
	case TypeString:
		if d.Atom == nil {
			return kval.String(""), nil
		}
		s, err := text(d.Atom)
		if err != nil {
			return nil, err
		}
		return kval.String(s), nil
	case TypeChar:
		s, err := text(d.Atom)
		if err != nil {
			return nil, err
		}
		if len(s) != 1 {
			return nil, invalid("char atom must be one byte, got %q", s)
		}
		return kval.Char(s[0]), nil
	case TypeCompound:
		out := make(kval.CompoundList, len(d.Items))
		for i, item := range d.Items {
			v, err := Decode(item)
			if err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	case TypeDict:
		return decodeDict(d)
	case TypeTable:
		return decodeTable(d)
	}
	at, ok := scalarType(d.Type)
	if !ok {
		return nil, invalid("unknown type %q", d.Type)
	}
	return decodeScalar(at, d)
}

func decodeDict(d Descriptor) (kval.Value, error) {
	if d.Keys == nil || d.Values == nil {
		return nil, invalid("dict needs keys and values")
	}
	keys, err := Decode(*d.Keys)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	values, err := Decode(*d.Values)
	if err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}
	dict, err := kval.NewDict(keys, values)
	if err != nil {
		return nil, err
	}
	if d.Sorted {
		dict = dict.AsSorted()
	}
	return dict, nil
}

// columnOrder returns Order when set, else the column names sorted.
func columnOrder(d Descriptor) ([]string, error) {
	if len(d.Order) == 0 {
		names := make([]string, 0, len(d.Columns))
		for name := range d.Columns {
			names = append(names, name)
		}
		slices.Sort(names)
		return names, nil
	}
	if len(d.Order) != len(d.Columns) {
		return nil, invalid("order names %d columns, table has %d", len(d.Order), len(d.Columns))
	}
	for _, name := range d.Order {
		if _, ok := d.Columns[name]; !ok {
			return nil, invalid("order names unknown column %q", name)
		}
	}
	return d.Order, nil
}

func decodeTable(d Descriptor) (kval.Value, error) {
	names, err := columnOrder(d)
	if err != nil {
		return nil, err
	}
	cols := make(kval.CompoundList, len(names))
	for i, name := range names {
		v, err := Decode(d.Columns[name])
		if err != nil {
			return nil, fmt.Errorf("columns[%s]: %w", name, err)
		}
		cols[i] = v
	}
	dict, err := kval.NewDict(kval.Symbol{Data: kval.List(names...)}, cols)
	if err != nil {
		return nil, err
	}
	t, err := kval.NewTable(dict)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Encode returns the descriptor of v. Encode then Decode yields a value
// Equal to v.
func Encode(v kval.Value) (Descriptor, error) {
	switch x := v.(type) {
	case nil, kval.Null:
		return Descriptor{Type: TypeNull}, nil
	case kval.ErrorValue:
		return Descriptor{Type: TypeError, Atom: string(x)}, nil
	case kval.String:
		return Descriptor{Type: TypeString, Atom: string(x)}, nil
	case kval.Char:
		return Descriptor{Type: TypeChar, Atom: string([]byte{byte(x)})}, nil
	case kval.CompoundList:
		items := make([]Descriptor, len(x))
		for i, item := range x {
			d, err := Encode(item)
			if err != nil {
				return Descriptor{}, fmt.Errorf("items[%d]: %w", i, err)
			}
			items[i] = d
		}
		return Descriptor{Type: TypeCompound, Items: items}, nil
	case kval.Dict:
		keys, err := Encode(x.Keys())
		if err != nil {
			return Descriptor{}, fmt.Errorf("keys: %w", err)
		}
		values, err := Encode(x.Values())
		if err != nil {
			return Descriptor{}, fmt.Errorf("values: %w", err)
		}
		return Descriptor{Type: TypeDict, Keys: &keys, Values: &values, Sorted: x.Sorted()}, nil
	case kval.Table:
		return encodeTable(x)
	case kval.Foreign:
		return Descriptor{}, fmt.Errorf("%w: foreign object", ErrUnsupported)
	}
	return encodeScalar(v)
}

func encodeTable(t kval.Table) (Descriptor, error) {
	names := t.ColumnNames()
	cols, _ := t.Dict().Values().(kval.CompoundList)
	if len(names) != len(cols) {
		return Descriptor{}, fmt.Errorf("%w: table with %d names and %d columns", ErrUnsupported, len(names), len(cols))
	}
	out := Descriptor{Type: TypeTable, Columns: make(map[string]Descriptor, len(names)), Order: names}
	for i, name := range names {
		if _, dup := out.Columns[name]; dup {
			return Descriptor{}, fmt.Errorf("%w: duplicate column %q", ErrUnsupported, name)
		}
		d, err := Encode(cols[i])
		if err != nil {
			return Descriptor{}, fmt.Errorf("columns[%s]: %w", name, err)
		}
		out.Columns[name] = d
	}
	return out, nil
}

func text(x any) (string, error) {
	switch s := x.(type) {
	case string:
		return s, nil
	case nil:
		return "", invalid("missing atom")
	}
	return "", invalid("expected a string, got %T", x)
}

// TypeName returns the descriptor type name for v.
func TypeName(v kval.Value) string {
	switch v.(type) {
	case nil, kval.Null:
		return TypeNull
	case kval.ErrorValue:
		return TypeError
	case kval.String:
		return TypeString
	case kval.CompoundList:
		return TypeCompound
	case kval.Dict:
		return TypeDict
	case kval.Table:
		return TypeTable
	}
	return v.Type().AtomOf().String()
}
