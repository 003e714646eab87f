package dbconv

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/dekarrin/tabula"
)

var primitives = map[reflect.Type]Converter{
	Bool.Type():    Bool,
	Int32.Type():   Int32,
	Int64.Type():   Int64,
	Float32.Type(): Float32,
	Float64.Type(): Float64,
	Text.Type():    Text,
}

// Resolver selects the Converter for a Go type. Converters for enumerated and
// string-parseable types are built the first time their type is resolved and
// cached for later calls.
//
// The zero value is ready for use. A Resolver is safe for concurrent use and
// must not be copied after first use.
type Resolver struct {
	// converters holds the cached non-primitive Converters, keyed by
	// reflect.Type.
	converters sync.Map

	// mu guards parsers. Resolution of a non-primitive type holds it for
	// reading from the check of registered parsers to the publishing of the
	// built Converter, so that RegisterParser cannot leave a stale entry.
	mu      sync.RWMutex
	parsers map[reflect.Type]reflect.Value
}

// NewResolver creates a Resolver with no registered parsers.
func NewResolver() *Resolver {
	return &Resolver{}
}

var defaultResolver = NewResolver()

// Default returns the process-wide Resolver used by Resolve and
// RegisterDefaultParser.
func Default() *Resolver {
	return defaultResolver
}

// Resolve gets the Converter for t from the default Resolver.
func Resolve(t reflect.Type) (Converter, error) {
	return defaultResolver.Resolve(t)
}

// Resolve returns the Converter for values of type t. The first of these rules
// that matches t decides it:
//
//  1. t is exactly bool, int32, int64, float32, float64 or string. The
//     package-level Converter for that type is returned; it is the same value
//     on every call.
//  2. t is an enumerated type (see Enum). Its members are stored by name.
//  3. t has exactly one parse operation (see Parser). Its values are stored as
//     text. If t has more than one, the returned error matches both
//     tabula.ErrAmbiguous and tabula.ErrUnsupportedType.
//  4. t is a byte slice. The returned error matches tabula.ErrNotImplemented.
//
// Any other type results in an error that matches tabula.ErrUnsupportedType
// and names t. Named types whose underlying type is primitive are not matched
// by rule 1.
func (r *Resolver) Resolve(t reflect.Type) (Converter, error) {
	if t == nil {
		return nil, tabula.NewError("nil type", tabula.ErrUnsupportedType)
	}

	if conv, ok := primitives[t]; ok {
		return conv, nil
	}

	if cached, ok := r.converters.Load(t); ok {
		return cached.(Converter), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if isEnum(t) {
		ec, err := newEnumConverter(t)
		if err != nil {
			return nil, err
		}
		return r.publish(t, ec), nil
	}

	ops := findParseOps(t, r.parsers[t])
	if len(ops) > 0 {
		pc, err := newParsingConverter(t, ops)
		if err != nil {
			return nil, err
		}
		return r.publish(t, pc), nil
	}

	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return nil, tabula.NewError(fmt.Sprintf("%v: byte sequence storage", t), tabula.ErrNotImplemented)
	}

	return nil, tabula.NewError(fmt.Sprintf("not an acceptable type: %v", t), tabula.ErrUnsupportedType)
}

// publish stores conv as the Converter for t unless another caller got there
// first, in which case that one is returned instead.
func (r *Resolver) publish(t reflect.Type, conv Converter) Converter {
	actual, _ := r.converters.LoadOrStore(t, conv)
	return actual.(Converter)
}

// RegisterParser registers parse as the operation that creates a T from text,
// for types that cannot be given a Parse or UnmarshalText method, such as
// types from other packages. Resolution of T then treats parse as one of T's
// parse operations; if T also has one of its own, resolving it fails as
// ambiguous.
//
// Registering a second parser for the same type, or one for a primitive type,
// is an error. Any Converter already cached for T is discarded.
func RegisterParser[T any](r *Resolver, parse func(string) (T, error)) error {
	if parse == nil {
		return fmt.Errorf("parse function cannot be nil")
	}

	t := reflect.TypeOf((*T)(nil)).Elem()
	if _, ok := primitives[t]; ok {
		return fmt.Errorf("%v is a primitive type and cannot have a parser", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.parsers == nil {
		r.parsers = map[reflect.Type]reflect.Value{}
	}
	if _, ok := r.parsers[t]; ok {
		return fmt.Errorf("duplicate parser registration; %v already has a registered parser", t)
	}

	r.parsers[t] = reflect.ValueOf(parse)
	r.converters.Delete(t)
	return nil
}

// RegisterDefaultParser calls RegisterParser on the default Resolver.
func RegisterDefaultParser[T any](parse func(string) (T, error)) error {
	return RegisterParser(defaultResolver, parse)
}

// For returns the Converter for type T from r.
func For[T any](r *Resolver) (Converter, error) {
	return r.Resolve(reflect.TypeOf((*T)(nil)).Elem())
}

// Encode encodes v with the Converter that r resolves for T.
func Encode[T any](r *Resolver, v T) (Value, error) {
	conv, err := For[T](r)
	if err != nil {
		return Value{}, err
	}
	return conv.Encode(v)
}

// Decode decodes sv with the Converter that r resolves for T.
func Decode[T any](r *Resolver, sv Value) (T, error) {
	var zero T

	conv, err := For[T](r)
	if err != nil {
		return zero, err
	}

	v, err := conv.Decode(sv)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
