package tabula

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Error_Error(t *testing.T) {
	testCases := []struct {
		name   string
		err    Error
		expect string
	}{
		{
			name:   "empty",
			err:    Error{},
			expect: "",
		},
		{
			name:   "message only",
			err:    NewError("table notes"),
			expect: "table notes",
		},
		{
			name:   "cause only",
			err:    NewError("", ErrNotFound),
			expect: ErrNotFound.Error(),
		},
		{
			name:   "message and causes uses first cause",
			err:    NewError("insert", ErrConstraintViolation, ErrDB),
			expect: "insert: " + ErrConstraintViolation.Error(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.err.Error())
		})
	}
}

func Test_Error_Is(t *testing.T) {
	nested := NewError("outer", NewError("inner", ErrTypeMismatch), ErrParse)

	testCases := []struct {
		name   string
		err    error
		target error
		expect bool
	}{
		{
			name:   "direct cause",
			err:    NewError("x", ErrUnsupportedType),
			target: ErrUnsupportedType,
			expect: true,
		},
		{
			name:   "second cause",
			err:    NewError("x", ErrAmbiguous, ErrUnsupportedType),
			target: ErrUnsupportedType,
			expect: true,
		},
		{
			name:   "cause of cause",
			err:    nested,
			target: ErrTypeMismatch,
			expect: true,
		},
		{
			name:   "unrelated",
			err:    nested,
			target: ErrNotFound,
			expect: false,
		},
		{
			name:   "equal Error value",
			err:    NewError("x", ErrDB),
			target: NewError("x", ErrDB),
			expect: true,
		},
		{
			name:   "wrapped by fmt",
			err:    fmt.Errorf("column id: %w", NewError("", ErrParse)),
			target: ErrParse,
			expect: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, errors.Is(tc.err, tc.target))
		})
	}
}

func Test_Error_Unwrap(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(NewError("x").Unwrap())
	assert.Equal([]error{ErrDB, ErrNotFound}, NewError("x", ErrDB, ErrNotFound).Unwrap())
}

func Test_ParseLogProvider(t *testing.T) {
	testCases := []struct {
		input     string
		expect    LogProvider
		expectErr bool
	}{
		{input: "", expect: NoLog},
		{input: "none", expect: NoLog},
		{input: "Jellog", expect: Jellog},
		{input: "std", expect: StdLog},
		{input: "zerolog", expect: Zerolog},
		{input: "logrus", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%q", tc.input), func(t *testing.T) {
			assert := assert.New(t)

			actual, err := ParseLogProvider(tc.input)

			if tc.expectErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.expect, actual)
			if tc.input != "" {
				assert.Equal(actual, must(ParseLogProvider(actual.String())))
			}
		})
	}
}

func Test_ParseFormat(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(JSON, must(ParseFormat("json")))
	assert.Equal(YAML, must(ParseFormat("YAML")))

	_, err := ParseFormat("toml")
	assert.Error(err)

	assert.Equal([]string{"json", "jsn"}, JSON.Extensions())
}

func must[E any](v E, err error) E {
	if err != nil {
		panic(err)
	}
	return v
}
