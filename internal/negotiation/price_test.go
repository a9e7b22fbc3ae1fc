package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoercePrice(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"30", 30},
		{"30.5", 30.5},
		{" 25 ", 25},
		{"", 0},
		{"abc", 0},
		{"₪30", 0},
		{"-10", -10},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CoercePrice(tc.raw), "raw=%q", tc.raw)
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "30", FormatPrice(30))
	assert.Equal(t, "30.5", FormatPrice(30.5))
	assert.Equal(t, "0", FormatPrice(0))
	assert.Equal(t, "25.75", FormatPrice(25.75))
}
