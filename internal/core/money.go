// Package core provides amount parsing and formatting utilities.
//
// Remote feeds are loose about numeric fields: amounts arrive as JSON
// numbers, quoted strings, currency-formatted strings or null. Everything
// here coerces to a finite float64 and never fails.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Epsilon is the tolerance used when comparing monetary floats.
const Epsilon = 1e-9

// ParseAmount converts a loosely formatted amount string to a finite float.
//
// It strips currency symbols, thousands separators and whitespace. A value
// wrapped in parentheses is treated as negative. Anything unparseable is 0.
//
// Examples:
//
//	ParseAmount("1,200.50") -> 1200.5
//	ParseAmount("$60")      -> 60
//	ParseAmount("(25.00)")  -> -25
//	ParseAmount("n/a")      -> 0
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", "€", "", ",", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if neg {
		v = -v
	}
	return v
}

// FlexAmount is a float64 that unmarshals from a JSON number, a string or null.
type FlexAmount float64

// UnmarshalJSON implements json.Unmarshaler. It never returns an error for
// malformed values; they become 0.
func (a *FlexAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = 0
			return nil
		}
		*a = FlexAmount(ParseAmount(s))
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*a = 0
		return nil
	}
	*a = FlexAmount(v)
	return nil
}

// Float returns the value as float64.
func (a FlexAmount) Float() float64 {
	return float64(a)
}

// FlexAccount is an account id that unmarshals from a number, a numeric
// string, null or a negative sentinel. Unscoped values decode to nil.
type FlexAccount struct {
	ID *int
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *FlexAccount) UnmarshalJSON(data []byte) error {
	a.ID = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw FlexAmount
	if err := raw.UnmarshalJSON(data); err != nil {
		return nil
	}
	v := raw.Float()
	if v < 0 || v != math.Trunc(v) {
		return nil
	}
	id := int(v)
	a.ID = &id
	return nil
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatAmount renders v with two decimals and thousands separators.
func FormatAmount(v float64) string {
	neg := v < 0
	s := strconv.FormatFloat(math.Abs(Round2(v)), 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
