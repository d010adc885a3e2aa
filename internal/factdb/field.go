package factdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldKind tags the scalar stored in a Field.
type FieldKind uint8

// FieldKind values.
const (
	KindInt FieldKind = iota
	KindText
	KindBool
)

func (k FieldKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Field is one scalar column of a fact. Interned ids and sizes are integers;
// enum tags are text.
type Field struct {
	Kind FieldKind
	Num  int64
	Str  string
}

// Int returns an integer field.
func Int(v int64) Field { return Field{Kind: KindInt, Num: v} }

// Text returns a text field.
func Text(s string) Field { return Field{Kind: KindText, Str: s} }

// Bool returns a boolean field.
func Bool(b bool) Field {
	f := Field{Kind: KindBool}
	if b {
		f.Num = 1
	}
	return f
}

// AsID returns the field as an interned id.
func (f Field) AsID() (ID, bool) {
	if f.Kind != KindInt || f.Num < 0 {
		return 0, false
	}
	return ID(f.Num), true
}

func (f Field) String() string {
	switch f.Kind {
	case KindText:
		return f.Str
	case KindBool:
		return strconv.FormatBool(f.Num != 0)
	default:
		return strconv.FormatInt(f.Num, 10)
	}
}

// MarshalJSON encodes the field as a bare JSON scalar.
func (f Field) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case KindText:
		return json.Marshal(f.Str)
	case KindBool:
		return json.Marshal(f.Num != 0)
	default:
		return []byte(strconv.FormatInt(f.Num, 10)), nil
	}
}

// UnmarshalJSON accepts integers, strings and booleans.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty field")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Text(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = Bool(b)
	default:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("field %s is not an integer, string or boolean", data)
		}
		*f = Int(n)
	}
	return nil
}

// Fact is one fixed-arity tuple of a relation.
type Fact []Field

// Ints is shorthand for a fact made only of integer fields.
func Ints(vs ...int64) Fact {
	fact := make(Fact, len(vs))
	for i, v := range vs {
		fact[i] = Int(v)
	}
	return fact
}

func (f Fact) String() string {
	parts := make([]string, len(f))
	for i, field := range f {
		parts[i] = field.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Value is one entry of an interning table: either text (qualified names,
// package names) or a tuple of fields referencing other tables.
type Value struct {
	Text  string
	Tuple []Field
}

// TextValue returns a text interning value.
func TextValue(s string) Value { return Value{Text: s} }

// TupleValue returns a structured interning value.
func TupleValue(fields ...Field) Value {
	if fields == nil {
		fields = []Field{}
	}
	return Value{Tuple: fields}
}

// IsTuple reports whether the value is structured.
func (v Value) IsTuple() bool { return v.Tuple != nil }

// key is the canonical identity used for deduplication.
func (v Value) key() string {
	b, _ := v.MarshalJSON()
	return string(b)
}

func (v Value) String() string {
	if v.IsTuple() {
		return Fact(v.Tuple).String()
	}
	return v.Text
}

// MarshalJSON encodes text values as strings and tuples as arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsTuple() {
		return json.Marshal(v.Tuple)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts a string or an array of scalars.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty interning value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TextValue(s)
	case '[':
		var fields []Field
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		*v = TupleValue(fields...)
	default:
		return fmt.Errorf("interning value %s is neither a string nor a tuple", data)
	}
	return nil
}
