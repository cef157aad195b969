package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{".5", "0.5", true},
		{"3.", "3", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"1.004", "1", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1 000", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidAmount, "%q", tc.in)
			continue
		}
		require.NoError(t, err, "%q", tc.in)
		assert.Equal(t, tc.out, got.String(), "%q", tc.in)
	}
}

func TestParseSalary(t *testing.T) {
	got, err := ParseSalary("0")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = ParseSalary("0,00")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = ParseSalary("4200.5")
	require.NoError(t, err)
	assert.Equal(t, "4200.5", got.String())

	_, err = ParseSalary("-10")
	assert.ErrorIs(t, err, ErrInvalidSalary)
	_, err = ParseSalary("")
	assert.ErrorIs(t, err, ErrInvalidSalary)
}
