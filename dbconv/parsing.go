package dbconv

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/dekarrin/tabula"
)

// Parser is implemented by types with a Parse method that creates a value of
// the type from text. The receiver of Parse is not used; it is called on the
// zero value of the type.
//
// A method named FromString with the same signature is detected the same way,
// as is UnmarshalText from encoding.TextUnmarshaler. A type must have exactly
// one of these (or a parser registered with RegisterParser) to be stored as
// text.
type Parser[T any] interface {
	Parse(s string) (T, error)
}

var (
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	errorType           = reflect.TypeOf((*error)(nil)).Elem()
	stringType          = reflect.TypeOf("")
)

// parseMethodNames are the methods that are checked for a parse operation, in
// addition to UnmarshalText.
var parseMethodNames = []string{"Parse", "FromString"}

// parseOp is one operation able to create a value of some type from text.
type parseOp struct {
	name  string
	parse func(s string) (reflect.Value, error)
}

// findParseOps returns every parse operation that t has. registered is the
// parse function registered for t, or the zero Value if there is none.
func findParseOps(t reflect.Type, registered reflect.Value) []parseOp {
	if t.Kind() == reflect.Interface {
		return nil
	}

	var ops []parseOp

	if op, ok := unmarshalTextOp(t); ok {
		ops = append(ops, op)
	}

	for _, name := range parseMethodNames {
		if op, ok := methodParseOp(t, name); ok {
			ops = append(ops, op)
		}
	}

	if registered.IsValid() {
		ops = append(ops, parseOp{
			name: "registered parser",
			parse: func(s string) (reflect.Value, error) {
				return callParseFunc(registered, nil, s)
			},
		})
	}

	return ops
}

func unmarshalTextOp(t reflect.Type) (parseOp, bool) {
	op := parseOp{name: "UnmarshalText"}

	if t.Kind() == reflect.Pointer && t.Implements(textUnmarshalerType) {
		elem := t.Elem()
		op.parse = func(s string) (reflect.Value, error) {
			p := reflect.New(elem)
			err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
			return p, err
		}
		return op, true
	}

	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		op.parse = func(s string) (reflect.Value, error) {
			p := reflect.New(t)
			err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
			return p.Elem(), err
		}
		return op, true
	}

	return op, false
}

// methodParseOp checks for a method of t called name that takes one argument
// that a string can be assigned to and returns either a t or a t and an error.
func methodParseOp(t reflect.Type, name string) (parseOp, bool) {
	m, ok := t.MethodByName(name)
	if !ok {
		return parseOp{}, false
	}

	// m.Type includes the receiver
	mt := m.Type
	if mt.NumIn() != 2 || !stringType.AssignableTo(mt.In(1)) {
		return parseOp{}, false
	}
	if !isParseResult(mt, t) {
		return parseOp{}, false
	}

	recv := reflect.Zero(t)
	return parseOp{
		name: name,
		parse: func(s string) (reflect.Value, error) {
			return callParseFunc(m.Func, &recv, s)
		},
	}, true
}

// isParseResult returns whether the results of function type ft are exactly
// (t) or (t, error).
func isParseResult(ft reflect.Type, t reflect.Type) bool {
	switch ft.NumOut() {
	case 1:
		return ft.Out(0) == t
	case 2:
		return ft.Out(0) == t && ft.Out(1) == errorType
	default:
		return false
	}
}

func callParseFunc(fn reflect.Value, recv *reflect.Value, s string) (reflect.Value, error) {
	args := []reflect.Value{reflect.ValueOf(s)}
	if recv != nil {
		args = append([]reflect.Value{*recv}, args...)
	}

	out := fn.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return out[0], out[1].Interface().(error)
	}
	return out[0], nil
}

// parsingConverter stores values as text, decoding them with the single parse
// operation that their type has.
type parsingConverter struct {
	typ reflect.Type
	op  parseOp
}

func newParsingConverter(t reflect.Type, ops []parseOp) (*parsingConverter, error) {
	if len(ops) != 1 {
		names := make([]string, len(ops))
		for i := range ops {
			names[i] = ops[i].name
		}
		msg := fmt.Sprintf("%v has %d parse operations (%s)", t, len(ops), strings.Join(names, ", "))
		return nil, tabula.NewError(msg, tabula.ErrAmbiguous, tabula.ErrUnsupportedType)
	}

	return &parsingConverter{typ: t, op: ops[0]}, nil
}

func (pc *parsingConverter) Type() reflect.Type {
	return pc.typ
}

func (pc *parsingConverter) StorageType() StorageType {
	return StorageText
}

// Encode returns the canonical text of v. This is the result of MarshalText
// if the type has it, otherwise String if the type has it, otherwise the
// default formatting of v.
func (pc *parsingConverter) Encode(v interface{}) (Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type() != pc.typ {
		return Value{}, mismatch(pc.typ, v)
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Value{}, tabula.NewError(fmt.Sprintf("nil %v has no text", pc.typ), tabula.ErrTypeMismatch)
	}

	s, err := formatText(rv)
	if err != nil {
		return Value{}, err
	}
	return TextValue(s), nil
}

func (pc *parsingConverter) Decode(sv Value) (interface{}, error) {
	s, ok := sv.Text()
	if !ok {
		return nil, tabula.NewError(fmt.Sprintf("expecting text but received %s", sv), tabula.ErrTypeMismatch)
	}

	v, err := pc.op.parse(s)
	if err != nil {
		msg := fmt.Sprintf("%s %q as %v", pc.op.name, s, pc.typ)
		return nil, tabula.NewError(msg, err, tabula.ErrParse)
	}
	return v.Interface(), nil
}

// formatText gives the canonical text of rv. Methods with pointer receivers
// are found by taking the address of a copy.
func formatText(rv reflect.Value) (string, error) {
	forms := []interface{}{rv.Interface()}
	if rv.Kind() != reflect.Pointer {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		forms = append(forms, p.Interface())
	}

	for _, f := range forms {
		if tm, ok := f.(encoding.TextMarshaler); ok {
			b, err := tm.MarshalText()
			if err != nil {
				return "", tabula.NewError(fmt.Sprintf("MarshalText on %v", rv.Type()), err, tabula.ErrEncodingFailure)
			}
			return string(b), nil
		}
	}
	for _, f := range forms {
		if st, ok := f.(fmt.Stringer); ok {
			return st.String(), nil
		}
	}
	return fmt.Sprint(rv.Interface()), nil
}
