package dbconv

import (
	"fmt"
	"reflect"

	"github.com/dekarrin/tabula"
)

// Enum is implemented by enumerated types. Members returns every member of the
// type, and String returns the name of a member. Names must be non-empty and
// unique among the members. The receiver of Members is not used; it is called
// on the zero value of the type.
//
// Types do not need to declare that they implement Enum; any type with the
// right methods is detected as enumerated. Asserting it with
//
//	var _ dbconv.Enum[Color] = Color(0)
//
// makes the compiler check the signatures.
type Enum[E any] interface {
	fmt.Stringer
	Members() []E
}

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

// isEnum returns whether t has the method shape of an Enum of itself.
func isEnum(t reflect.Type) bool {
	if t.Kind() == reflect.Interface || !t.Implements(stringerType) {
		return false
	}
	m, ok := t.MethodByName("Members")
	if !ok {
		return false
	}

	// m.Type includes the receiver
	mt := m.Type
	return mt.NumIn() == 1 && mt.NumOut() == 1 && mt.Out(0) == reflect.SliceOf(t)
}

// enumConverter stores members of an enumerated type as their names.
type enumConverter struct {
	typ    reflect.Type
	byName map[string]reflect.Value
}

// NewEnum creates a Converter for the enumerated type E. The members of E are
// read once, here; an error matching tabula.ErrInvalidEnum is returned if E
// has no members or if any member name is empty or duplicated.
func NewEnum[E Enum[E]]() (Converter, error) {
	return newEnumConverter(reflect.TypeOf((*E)(nil)).Elem())
}

func newEnumConverter(t reflect.Type) (*enumConverter, error) {
	if t == nil || !isEnum(t) {
		return nil, tabula.NewError(fmt.Sprintf("%v does not have methods Members() []%v and String() string", t, t), tabula.ErrInvalidEnum)
	}

	members := reflect.Zero(t).MethodByName("Members").Call(nil)[0]
	if members.Len() < 1 {
		return nil, tabula.NewError(fmt.Sprintf("%v has no members", t), tabula.ErrInvalidEnum)
	}

	ec := &enumConverter{
		typ:    t,
		byName: make(map[string]reflect.Value, members.Len()),
	}
	for i := 0; i < members.Len(); i++ {
		m := members.Index(i)
		name := m.Interface().(fmt.Stringer).String()
		if name == "" {
			return nil, tabula.NewError(fmt.Sprintf("%v member %d has an empty name", t, i), tabula.ErrInvalidEnum)
		}
		if _, dup := ec.byName[name]; dup {
			return nil, tabula.NewError(fmt.Sprintf("%v has more than one member named %q", t, name), tabula.ErrInvalidEnum)
		}
		ec.byName[name] = m
	}

	return ec, nil
}

func (ec *enumConverter) Type() reflect.Type {
	return ec.typ
}

func (ec *enumConverter) StorageType() StorageType {
	return StorageText
}

// Encode returns the name of the member v. A value of the right type that is
// not one of the members fails with tabula.ErrUnknownVariant.
func (ec *enumConverter) Encode(v interface{}) (Value, error) {
	if reflect.TypeOf(v) != ec.typ {
		return Value{}, mismatch(ec.typ, v)
	}

	name := v.(fmt.Stringer).String()
	if _, ok := ec.byName[name]; !ok {
		return Value{}, tabula.NewError(fmt.Sprintf("%q is not a member of %v", name, ec.typ), tabula.ErrUnknownVariant)
	}
	return TextValue(name), nil
}

func (ec *enumConverter) Decode(sv Value) (interface{}, error) {
	s, ok := sv.Text()
	if !ok {
		return nil, tabula.NewError(fmt.Sprintf("expecting text but received %s", sv), tabula.ErrTypeMismatch)
	}

	m, ok := ec.byName[s]
	if !ok {
		return nil, tabula.NewError(fmt.Sprintf("%q is not a member of %v", s, ec.typ), tabula.ErrUnknownVariant)
	}
	return m.Interface(), nil
}
