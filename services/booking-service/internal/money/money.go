// Package money validates business currencies and renders prices stored in minor units.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
)

var ErrInvalidCurrency = errors.New("invalid currency")

var codePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseCurrency accepts an upper-case ISO 4217 code known to CLDR.
func ParseCurrency(code string) (currency.Unit, error) {
	code = strings.TrimSpace(code)
	if !codePattern.MatchString(code) {
		return currency.Unit{}, fmt.Errorf("%w %q", ErrInvalidCurrency, code)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("%w %q: %v", ErrInvalidCurrency, code, err)
	}
	return unit, nil
}

// Scale is the number of minor-unit digits of the currency, e.g. 2 for USD and 0 for JPY.
func Scale(unit currency.Unit) int {
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// Format renders an amount in minor units as "<CODE> <major>.<minor>".
func Format(minor int64, code string) (string, error) {
	unit, err := ParseCurrency(code)
	if err != nil {
		return "", err
	}
	return unit.String() + " " + formatMinor(minor, Scale(unit)), nil
}

func formatMinor(minor int64, scale int) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	digits := strconv.FormatInt(minor, 10)
	if scale <= 0 {
		return sign + digits
	}
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	cut := len(digits) - scale
	return sign + digits[:cut] + "." + digits[cut:]
}
