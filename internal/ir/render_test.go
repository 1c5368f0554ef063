package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null{}, "null"},
		{"nil", nil, "null"},
		{"int", Int(-1), "-1"},
		{"float", Float(0.125), "0.125"},
		{"bool", Bool(true), "true"},
		{"string no html escape", String("<a&b>"), `"<a&b>"`},
		{"string control chars", String("a\tb\nc"), `"a\tb\nc"`},
		{"array", NewArray(Float(0.5), Int(2)), "[0.5,2]"},
		{"object sorted", Object{"z": Int(1), "a": String("x")}, `{"a":"x","z":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	got, err := Render(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", got)
}

func TestRender_RejectsNonFinite(t *testing.T) {
	_, err := Render(NewArray(Float(math.NaN())))
	assert.Error(t, err)

	_, err = Render(Float(math.Inf(1)))
	assert.Error(t, err)
}
