package dbconv

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/dekarrin/tabula"
)

// Value is a primitive that crosses the storage boundary. It holds exactly one
// of a 32-bit integer, 64-bit integer, 32-bit float, 64-bit float, text, or
// byte slice, identified by its Type.
//
// The zero Value holds nothing and has a Type that is not a valid StorageType.
type Value struct {
	st StorageType
	i  int64
	f  float64
	s  string
	b  []byte
}

func Int32Value(v int32) Value {
	return Value{st: StorageInt32, i: int64(v)}
}

func Int64Value(v int64) Value {
	return Value{st: StorageInt64, i: v}
}

func Float32Value(v float32) Value {
	return Value{st: StorageFloat32, f: float64(v)}
}

func Float64Value(v float64) Value {
	return Value{st: StorageFloat64, f: v}
}

func TextValue(v string) Value {
	return Value{st: StorageText, s: v}
}

// BlobValue returns a Value holding a copy of v.
func BlobValue(v []byte) Value {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Value{st: StorageBlob, b: cp}
}

// ValueOf converts a primitive as returned by a database/sql driver into the
// Value variant that holds it. int64, float64, string, and []byte are the
// types returned by the SQLite driver; int32, int, float32 and bool are also
// accepted for drivers that return them. bool is held as an Int32 of 1 or 0.
//
// A nil (SQL NULL) or any other type results in an error that matches
// tabula.ErrTypeMismatch.
func ValueOf(v interface{}) (Value, error) {
	switch typed := v.(type) {
	case int64:
		return Int64Value(typed), nil
	case int32:
		return Int32Value(typed), nil
	case int:
		return Int64Value(int64(typed)), nil
	case float64:
		return Float64Value(typed), nil
	case float32:
		return Float32Value(typed), nil
	case string:
		return TextValue(typed), nil
	case []byte:
		return BlobValue(typed), nil
	case bool:
		if typed {
			return Int32Value(1), nil
		}
		return Int32Value(0), nil
	case nil:
		return Value{}, tabula.NewError("NULL has no storage value", tabula.ErrTypeMismatch)
	default:
		return Value{}, tabula.NewError(fmt.Sprintf("%T is not a storage primitive", v), tabula.ErrTypeMismatch)
	}
}

// Type returns the variant that v holds.
func (v Value) Type() StorageType {
	return v.st
}

// IsNumeric returns whether v holds an integer or floating-point variant.
func (v Value) IsNumeric() bool {
	return v.st.IsNumeric()
}

// Int returns the numeric value of v as an int64. Floating-point variants are
// truncated toward zero. The second return value is false if v is not numeric.
func (v Value) Int() (int64, bool) {
	switch v.st {
	case StorageInt32, StorageInt64:
		return v.i, true
	case StorageFloat32, StorageFloat64:
		return int64(v.f), true
	default:
		return 0, false
	}
}

// Float returns the numeric value of v as a float64. The second return value
// is false if v is not numeric.
func (v Value) Float() (float64, bool) {
	switch v.st {
	case StorageInt32, StorageInt64:
		return float64(v.i), true
	case StorageFloat32, StorageFloat64:
		return v.f, true
	default:
		return 0, false
	}
}

// Text returns the string held by v. The second return value is false if v is
// not a Text variant.
func (v Value) Text() (string, bool) {
	if v.st != StorageText {
		return "", false
	}
	return v.s, true
}

// Bytes returns the bytes held by v. The second return value is false if v is
// not a Blob variant.
func (v Value) Bytes() ([]byte, bool) {
	if v.st != StorageBlob {
		return nil, false
	}
	return v.b, true
}

// Value returns the driver representation of v so that a Value can be passed
// directly as an argument to database/sql functions. Integer variants become
// int64 and float variants become float64.
func (v Value) Value() (driver.Value, error) {
	switch v.st {
	case StorageInt32, StorageInt64:
		return v.i, nil
	case StorageFloat32, StorageFloat64:
		return v.f, nil
	case StorageText:
		return v.s, nil
	case StorageBlob:
		return v.b, nil
	default:
		return nil, tabula.NewError("empty Value has no driver representation", tabula.ErrTypeMismatch)
	}
}

// String returns a representation of v for use in messages.
func (v Value) String() string {
	switch v.st {
	case StorageInt32, StorageInt64:
		return v.st.String() + "(" + strconv.FormatInt(v.i, 10) + ")"
	case StorageFloat32:
		return v.st.String() + "(" + strconv.FormatFloat(v.f, 'g', -1, 32) + ")"
	case StorageFloat64:
		return v.st.String() + "(" + strconv.FormatFloat(v.f, 'g', -1, 64) + ")"
	case StorageText:
		return v.st.String() + "(" + strconv.Quote(v.s) + ")"
	case StorageBlob:
		return fmt.Sprintf("%s(%d bytes)", v.st, len(v.b))
	default:
		return "empty"
	}
}
