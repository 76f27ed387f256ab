package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		want   string
	}{
		{"1234.5", "MYR", "MYR 1,234.50"},
		{"289.505", "myr", "MYR 289.51"},
		{"0", "SGD", "SGD 0.00"},
		{"1234567.891", "USD", "USD 1,234,567.89"},
		{"-75", "MYR", "-MYR 75.00"},
		{"1735000", "IDR", "IDR 1.735.000"},
		{"1735000.5", "IDR", "IDR 1.735.001"},
		{"999", "IDR", "IDR 999"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.amount+" "+tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(decimal.RequireFromString(tt.amount), tt.code))
		})
	}
}

func TestFormatIDR(t *testing.T) {
	assert.Equal(t, "IDR 2.500.000", FormatIDR(decimal.NewFromInt(2500000)))
}
