// Package money implements exact decimal-to-base-units conversion for USD
// prices, using pure string arithmetic so advertisement-time and
// verification-time computations are guaranteed to agree.
package money

import (
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedPrice is returned when a price string contains non-numeric
// characters or cannot be parsed.
var ErrMalformedPrice = errors.New("money: malformed price")

// PriceToBaseUnits converts a decimal USD price string into the smallest
// unit of a token with the given number of decimals, using exact string
// arithmetic (no floating point):
//
//  1. strip a leading "$"
//  2. split on "." into integer and fractional parts
//  3. truncate or right-pad the fractional part to exactly `decimals` digits
//  4. concatenate, strip leading zeros (empty becomes "0")
//  5. parse as an arbitrary-precision integer
func PriceToBaseUnits(price string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, ErrMalformedPrice
	}

	s := strings.TrimPrefix(strings.TrimSpace(price), "$")
	if s == "" {
		return nil, ErrMalformedPrice
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && strings.Contains(fracPart, ".") {
		return nil, ErrMalformedPrice
	}

	if !isDigits(intPart) || !isDigits(fracPart) {
		return nil, ErrMalformedPrice
	}

	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	} else {
		fracPart += strings.Repeat("0", decimals-len(fracPart))
	}

	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		combined = "0"
	}

	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, ErrMalformedPrice
	}
	return out, nil
}

// BaseUnitsToPrice is the inverse of PriceToBaseUnits: it renders a base-unit
// integer back into a decimal string with exactly `decimals` fractional
// digits, as required by the round-trip law in spec §8.
func BaseUnitsToPrice(value *big.Int, decimals int) string {
	if value == nil {
		value = big.NewInt(0)
	}
	if decimals <= 0 {
		return value.String()
	}

	neg := value.Sign() < 0
	abs := new(big.Int).Abs(value)
	digits := abs.String()

	for len(digits) <= decimals {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-decimals]
	fracPart := digits[len(digits)-decimals:]

	out := intPart + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// ValidateDecimalPrice cross-checks that a price string is a syntactically
// valid decimal number with at most 9 fractional digits (per spec §3's
// Service invariant), using shopspring/decimal for the parse so the check
// agrees with how any downstream component that needs arbitrary-precision
// decimal math (rather than the fixed-scale integer math above) would see
// the same value.
func ValidateDecimalPrice(price string) error {
	s := strings.TrimPrefix(strings.TrimSpace(price), "$")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ErrMalformedPrice
	}
	if d.Sign() < 0 {
		return ErrMalformedPrice
	}
	if -d.Exponent() > 9 {
		return ErrMalformedPrice
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MustParseDecimals parses a decimal-count literal such as a chain's
// stablecoin decimals, panicking on a malformed literal.
func MustParseDecimals(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(err)
	}
	return n
}
