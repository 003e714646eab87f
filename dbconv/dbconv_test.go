package dbconv

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Types shared by the tests in this package.

type color int

const (
	red color = iota
	green
	blue
)

func (c color) String() string {
	switch c {
	case red:
		return "RED"
	case green:
		return "GREEN"
	case blue:
		return "BLUE"
	default:
		return fmt.Sprintf("color(%d)", int(c))
	}
}

func (color) Members() []color {
	return []color{red, green, blue}
}

var _ Enum[color] = red

type emptyEnum int

func (emptyEnum) String() string { return "x" }
func (emptyEnum) Members() []emptyEnum { return nil }

type dupEnum int

func (dupEnum) String() string { return "same" }
func (dupEnum) Members() []dupEnum { return []dupEnum{0, 1} }

type namelessEnum int

func (namelessEnum) String() string { return "" }
func (namelessEnum) Members() []namelessEnum { return []namelessEnum{0} }

// celsius has a Parse method.
type celsius float64

func (c celsius) String() string {
	return strconv.FormatFloat(float64(c), 'g', -1, 64) + "C"
}

func (celsius) Parse(s string) (celsius, error) {
	if !strings.HasSuffix(s, "C") {
		return 0, errors.New("missing unit")
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "C"), 64)
	if err != nil {
		return 0, err
	}
	return celsius(f), nil
}

var _ Parser[celsius] = celsius(0)

// code has a FromString method with no error result.
type code string

func (code) FromString(s string) code {
	return code(strings.ToUpper(s))
}

// twoWays has two parse operations and so cannot be resolved.
type twoWays struct {
	v string
}

func (twoWays) Parse(s string) (twoWays, error) {
	return twoWays{v: s}, nil
}

func (twoWays) FromString(s string) (twoWays, error) {
	return twoWays{v: s}, nil
}

// wrongParse has a Parse method with a signature that does not qualify.
type wrongParse struct{}

func (wrongParse) Parse(s string, strict bool) (wrongParse, error) {
	return wrongParse{}, nil
}

// loose has a Parse method taking any argument a string can be assigned to.
type loose string

func (loose) Parse(v interface{}) (loose, error) {
	return loose(fmt.Sprint(v)), nil
}

// version is parsed with a parser registered in tests.
type version struct {
	major, minor int
}

func (v version) String() string {
	return fmt.Sprintf("%d.%d", v.major, v.minor)
}

func parseVersion(s string) (version, error) {
	var v version
	_, err := fmt.Sscanf(s, "%d.%d", &v.major, &v.minor)
	return v, err
}

// token implements encoding.TextUnmarshaler with a pointer receiver and
// encoding.TextMarshaler with a value receiver.
type token struct {
	s string
}

func (t token) MarshalText() ([]byte, error) {
	if t.s == "" {
		return nil, errors.New("empty token")
	}
	return []byte("tok:" + t.s), nil
}

func (t *token) UnmarshalText(b []byte) error {
	s := string(b)
	if !strings.HasPrefix(s, "tok:") {
		return errors.New("not a token")
	}
	t.s = strings.TrimPrefix(s, "tok:")
	return nil
}

type point struct {
	X, Y int
}

type score int32
