package money

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		minor int64
		code  string
		want  string
	}{
		{1250, "USD", "USD 12.50"},
		{5, "EUR", "EUR 0.05"},
		{0, "GBP", "GBP 0.00"},
		{1500, "JPY", "JPY 1500"},
		{-199, "USD", "USD -1.99"},
	}
	for _, tc := range tests {
		got, err := Format(tc.minor, tc.code)
		if err != nil {
			t.Fatalf("Format(%d, %s) failed: %v", tc.minor, tc.code, err)
		}
		if got != tc.want {
			t.Fatalf("Format(%d, %s) = %q, want %q", tc.minor, tc.code, got, tc.want)
		}
	}
}

func TestParseCurrencyRejects(t *testing.T) {
	for _, code := range []string{"", "usd", "US", "USDX", "ZZZ"} {
		if _, err := ParseCurrency(code); !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("ParseCurrency(%q): expected ErrInvalidCurrency, got %v", code, err)
		}
	}
}
