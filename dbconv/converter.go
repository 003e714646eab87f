// Package dbconv contains the Converters that change values between native Go
// types and the primitives stored in relational columns, and the Resolver that
// selects the Converter for a Go type.
//
// Six primitive Go types have a fixed Converter: bool, int32, int64, float32,
// float64 and string. Two further categories are detected from the shape of a
// type rather than by listing it anywhere: enumerated types, which have a
// Members method and a String method, and string-parseable types, which have
// exactly one operation that parses the type from text. Converters for those
// are built on first use and cached by the Resolver.
//
// Nothing in this package performs I/O or logs. Every failure is returned as a
// tabula.Error matching one of the conversion error kinds in package tabula.
package dbconv

import (
	"fmt"
	"reflect"

	"github.com/dekarrin/tabula"
)

// Converter encodes values of exactly one Go type to a storage Value and
// decodes them back. The StorageType of a Converter never changes, and
// Encode always returns a Value of that StorageType.
type Converter interface {
	// Type returns the Go type that the Converter is for.
	Type() reflect.Type

	// StorageType returns the category of column that values are stored in.
	StorageType() StorageType

	// Encode converts v to its storage representation. If v is not of the
	// type the Converter is for, the returned error matches
	// tabula.ErrTypeMismatch.
	Encode(v interface{}) (Value, error)

	// Decode converts sv back to a value of the type the Converter is for.
	Decode(sv Value) (interface{}, error)
}

// Conv holds functions to convert a value to and from its database
// representation. The type param N is the native type.
type Conv[N any] struct {
	// Storage is the StorageType that ToDB produces.
	Storage StorageType

	ToDB   func(N) Value
	FromDB func(Value) (N, error)

	// Accept converts a value of some other type to N. If nil, Encode only
	// accepts values whose dynamic type is exactly N.
	Accept func(interface{}) (N, bool)
}

func (c *Conv[N]) Type() reflect.Type {
	return reflect.TypeOf((*N)(nil)).Elem()
}

func (c *Conv[N]) StorageType() StorageType {
	return c.Storage
}

func (c *Conv[N]) Encode(v interface{}) (Value, error) {
	n, ok := v.(N)
	if !ok && c.Accept != nil {
		n, ok = c.Accept(v)
	}
	if !ok {
		return Value{}, mismatch(c.Type(), v)
	}
	return c.ToDB(n), nil
}

func (c *Conv[N]) Decode(sv Value) (interface{}, error) {
	return c.FromDB(sv)
}

// Bool stores booleans as 32-bit integers: true is 1 and false is 0. Any
// numeric value is decoded by narrowing it to 32 bits and comparing it to 1.
var Bool = &Conv[bool]{
	Storage: StorageInt32,
	ToDB: func(b bool) Value {
		if b {
			return Int32Value(1)
		}
		return Int32Value(0)
	},
	FromDB: func(sv Value) (bool, error) {
		n, err := numericFromDB[int32](sv)
		if err != nil {
			return false, err
		}
		return n == 1, nil
	},
}

// Int32 stores 32-bit integers. Encode narrows any Go number to 32 bits;
// integers keep their low 32 bits and floats are truncated toward zero.
var Int32 = &Conv[int32]{
	Storage: StorageInt32,
	ToDB:    Int32Value,
	FromDB:  numericFromDB[int32],
	Accept:  acceptNumeric[int32],
}

// Int64 stores 64-bit integers.
var Int64 = &Conv[int64]{
	Storage: StorageInt64,
	ToDB:    Int64Value,
	FromDB:  numericFromDB[int64],
	Accept:  acceptNumeric[int64],
}

// Float32 stores single-precision floats.
var Float32 = &Conv[float32]{
	Storage: StorageFloat32,
	ToDB:    Float32Value,
	FromDB:  numericFromDB[float32],
	Accept:  acceptNumeric[float32],
}

// Float64 stores double-precision floats.
var Float64 = &Conv[float64]{
	Storage: StorageFloat64,
	ToDB:    Float64Value,
	FromDB:  numericFromDB[float64],
	Accept:  acceptNumeric[float64],
}

// Text stores strings unchanged.
var Text = &Conv[string]{
	Storage: StorageText,
	ToDB:    TextValue,
	FromDB: func(sv Value) (string, error) {
		s, ok := sv.Text()
		if !ok {
			return "", tabula.NewError(fmt.Sprintf("expecting text but received %s", sv), tabula.ErrTypeMismatch)
		}
		return s, nil
	},
}

type number interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// numericFromDB converts any numeric variant to N with a Go conversion.
func numericFromDB[N number](sv Value) (N, error) {
	switch sv.st {
	case StorageInt32, StorageInt64:
		return N(sv.i), nil
	case StorageFloat32, StorageFloat64:
		return N(sv.f), nil
	default:
		return 0, tabula.NewError(fmt.Sprintf("expecting number but received %s", sv), tabula.ErrTypeMismatch)
	}
}

func acceptNumeric[N number](v interface{}) (N, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return N(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return N(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return N(rv.Float()), true
	default:
		return 0, false
	}
}

func mismatch(want reflect.Type, got interface{}) error {
	return tabula.NewError(fmt.Sprintf("expecting %s but received %T", want, got), tabula.ErrTypeMismatch)
}
