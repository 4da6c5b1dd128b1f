package wire

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jsamuelsen/authrpc/internal/domain"
)

// FieldType is the JSON type a required field must have.
type FieldType int

const (
	TypeString FieldType = iota + 1
	TypeObject
	TypeArray
	TypeNumber
	TypeBool
)

// String returns the JSON name of the type.
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Field declares one required value by key path and type.
type Field struct {
	Path []string
	Type FieldType
}

// Required is shorthand for declaring a Field.
func Required(t FieldType, path ...string) Field {
	return Field{Path: path, Type: t}
}

// Name returns the dotted path used in validation errors.
func (f Field) Name() string {
	return strings.Join(f.Path, ".")
}

// Schema is an ordered list of required fields. Extract checks fields in
// declaration order and, for each field, every enclosing object outer-first
// before the field itself.
type Schema []Field

// Extract checks every declared field and returns their values. The first
// missing or mistyped field aborts with a *domain.ValidationError naming its
// dotted path; null counts as missing.
func (s Schema) Extract(raw RawResponse) (Values, error) {
	values := make(Values, len(s))
	seen := make(map[string]struct{})

	for _, f := range s {
		if len(f.Path) == 0 {
			return nil, domain.NewValidationError("", "schema field has an empty path")
		}

		for depth := 1; depth < len(f.Path); depth++ {
			parent := Field{Path: f.Path[:depth], Type: TypeObject}

			name := parent.Name()
			if _, ok := seen[name]; ok {
				continue
			}

			if _, err := check(raw, parent); err != nil {
				return nil, err
			}

			seen[name] = struct{}{}
		}

		v, err := check(raw, f)
		if err != nil {
			return nil, err
		}

		seen[f.Name()] = struct{}{}
		values[f.Name()] = v
	}

	return values, nil
}

func check(raw RawResponse, f Field) (gjson.Result, error) {
	v := raw.Get(f.Path...)
	if !v.Exists() || v.Type == gjson.Null {
		return gjson.Result{}, domain.NewValidationError(f.Name(), "is missing")
	}

	if got := typeName(v); got != f.Type.String() {
		return gjson.Result{}, domain.NewValidationError(f.Name(),
			fmt.Sprintf("must be of type %s, got %s", f.Type, got))
	}

	return v, nil
}

func typeName(v gjson.Result) string {
	switch {
	case v.IsObject():
		return TypeObject.String()
	case v.IsArray():
		return TypeArray.String()
	case v.IsBool():
		return TypeBool.String()
	}

	switch v.Type {
	case gjson.String:
		return TypeString.String()
	case gjson.Number:
		return TypeNumber.String()
	case gjson.Null:
		return "null"
	default:
		return "unknown"
	}
}

// Values holds the results of a successful Extract keyed by dotted path.
type Values map[string]gjson.Result

// StringAt returns the string at the dotted path, or "" when not extracted.
func (v Values) StringAt(path string) string {
	return v[path].String()
}

// ArrayAt returns the elements of the array at the dotted path.
func (v Values) ArrayAt(path string) []gjson.Result {
	return v[path].Array()
}
