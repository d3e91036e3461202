package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMillis(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{name: "milliseconds", input: "500ms", expected: 500},
		{name: "seconds", input: "1s", expected: 1000},
		{name: "minutes", input: "1m", expected: 60000},
		{name: "ten seconds", input: "10s", expected: 10000},
		{name: "decimal seconds", input: "1.5s", expected: 1500},
		{name: "decimal minutes", input: "0.5m", expected: 30000},
		{name: "fractional millis rounds", input: "2.6ms", expected: 3},
		{name: "zero", input: "0s", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMillis(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseMillis_Invalid(t *testing.T) {
	inputs := []string{"", "10x", "abc", "10", "s", "1.2.3s", "10S", "1h", "-5s", " 5s", "5 s", "999999999999999m"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseMillis(input)
			require.Error(t, err)

			var perr *ParseError
			assert.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
		})
	}
}

func TestFormatMillis_RoundTrip(t *testing.T) {
	inputs := []string{"500ms", "1s", "10s", "2m", "90s", "1ms", "0ms", "61s", "120m"}

	for _, input := range inputs {
		ms, err := ParseMillis(input)
		require.NoError(t, err)
		assert.Equal(t, input, FormatMillis(ms))
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("250ms")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = ParseDuration("250")
	assert.Error(t, err)
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"2m"`)))
	assert.Equal(t, Duration(2*time.Minute), d)

	assert.Error(t, d.UnmarshalJSON([]byte(`30`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`"30h"`)))

	out, err := Duration(1500 * time.Millisecond).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1500ms"`, string(out))
}
