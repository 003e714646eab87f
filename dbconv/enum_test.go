package dbconv

import (
	"reflect"
	"testing"

	"github.com/dekarrin/tabula"
	"github.com/stretchr/testify/assert"
)

func Test_NewEnum(t *testing.T) {
	t.Run("valid enum", func(t *testing.T) {
		assert := assert.New(t)

		conv, err := NewEnum[color]()
		if !assert.NoError(err) {
			return
		}
		assert.Equal(reflect.TypeOf(red), conv.Type())
		assert.Equal(StorageText, conv.StorageType())
	})

	t.Run("no members", func(t *testing.T) {
		_, err := NewEnum[emptyEnum]()
		assert.ErrorIs(t, err, tabula.ErrInvalidEnum)
	})

	t.Run("duplicate names", func(t *testing.T) {
		_, err := NewEnum[dupEnum]()
		assert.ErrorIs(t, err, tabula.ErrInvalidEnum)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewEnum[namelessEnum]()
		assert.ErrorIs(t, err, tabula.ErrInvalidEnum)
	})

	t.Run("not an enum", func(t *testing.T) {
		_, err := newEnumConverter(reflect.TypeOf(celsius(0)))
		assert.ErrorIs(t, err, tabula.ErrInvalidEnum)
	})
}

func Test_enumConverter_Encode(t *testing.T) {
	conv, err := NewEnum[color]()
	if !assert.NoError(t, err) {
		return
	}

	testCases := []struct {
		name             string
		input            interface{}
		expect           Value
		expectErrToMatch error
	}{
		{name: "first member", input: red, expect: TextValue("RED")},
		{name: "middle member", input: green, expect: TextValue("GREEN")},
		{name: "last member", input: blue, expect: TextValue("BLUE")},
		{name: "not a member", input: color(12), expectErrToMatch: tabula.ErrUnknownVariant},
		{name: "underlying type", input: 1, expectErrToMatch: tabula.ErrTypeMismatch},
		{name: "nil", input: nil, expectErrToMatch: tabula.ErrTypeMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := conv.Encode(tc.input)

			if tc.expectErrToMatch != nil {
				assert.ErrorIs(err, tc.expectErrToMatch)
				return
			}
			if !assert.NoError(err) {
				return
			}
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_enumConverter_Decode(t *testing.T) {
	conv, err := NewEnum[color]()
	if !assert.NoError(t, err) {
		return
	}

	testCases := []struct {
		name             string
		input            Value
		expect           interface{}
		expectErrToMatch error
	}{
		{name: "first member", input: TextValue("RED"), expect: red},
		{name: "middle member", input: TextValue("GREEN"), expect: green},
		{name: "last member", input: TextValue("BLUE"), expect: blue},
		{name: "unknown name", input: TextValue("PURPLE"), expectErrToMatch: tabula.ErrUnknownVariant},
		{name: "wrong case", input: TextValue("red"), expectErrToMatch: tabula.ErrUnknownVariant},
		{name: "empty", input: TextValue(""), expectErrToMatch: tabula.ErrUnknownVariant},
		{name: "ordinal", input: Int32Value(1), expectErrToMatch: tabula.ErrTypeMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := conv.Decode(tc.input)

			if tc.expectErrToMatch != nil {
				assert.ErrorIs(err, tc.expectErrToMatch)
				return
			}
			if !assert.NoError(err) {
				return
			}
			assert.Equal(tc.expect, actual)
		})
	}
}
