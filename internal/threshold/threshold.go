// Package threshold parses human-entered size strings such as "50MB" into
// exact byte counts.
//
// Parsing is strict: anything that is not a plain decimal number followed
// by an optional binary unit is refused, with a typed error saying why.
package threshold

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// DefaultMax is the largest threshold accepted by the package-level
// parsers (1 PiB).
const DefaultMax int64 = 1 << 50

var (
	ErrNotAString       = errors.New("threshold must be a string")
	ErrInvalidNumeric   = errors.New("invalid numeric value")
	ErrOutOfBounds      = errors.New("value out of bounds")
	ErrUnrecognizedUnit = errors.New("unrecognized unit")
	ErrInjectionPattern = errors.New("disallowed characters in threshold")
)

// ParseError reports a threshold that could not be parsed.
type ParseError struct {
	Kind  error
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse threshold %q: %v", e.Input, e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Kind }

// Parser parses size strings bounded by Max. A zero Max means DefaultMax.
type Parser struct {
	Max int64
}

var (
	plainNumber   = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	groupedNumber = regexp.MustCompile(`^[0-9]{1,3}(,[0-9]{3})+(\.[0-9]+)?$`)
	exponentTail  = regexp.MustCompile(`^e[0-9]`)
)

var units = map[string]int64{
	"b":  1,
	"kb": 1 << 10,
	"mb": 1 << 20,
	"gb": 1 << 30,
	"tb": 1 << 40,
}

// Parse accepts only string input. Any other type, including numbers
// decoded from YAML, fails with ErrNotAString.
func (p Parser) Parse(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, &ParseError{Kind: ErrNotAString, Input: fmt.Sprintf("%v (%T)", v, v)}
	}
	return p.ParseString(s)
}

// ParseString converts s to bytes. A bare number is taken as megabytes.
// Fractional bytes are truncated.
func (p Parser) ParseString(s string) (int64, error) {
	fail := func(kind error) (int64, error) {
		return 0, &ParseError{Kind: kind, Input: s}
	}

	t := strings.TrimSpace(s)
	if t == "" {
		return fail(ErrInvalidNumeric)
	}

	negative := false
	switch t[0] {
	case '-':
		negative = true
		t = t[1:]
	case '+':
		t = t[1:]
	}

	for i := 0; i < len(t); i++ {
		if !allowed(t[i]) {
			return fail(ErrInjectionPattern)
		}
	}

	t = strings.ToLower(t)
	split := strings.IndexFunc(t, func(r rune) bool { return r >= 'a' && r <= 'z' })
	number, unit := t, ""
	if split >= 0 {
		number, unit = t[:split], t[split:]
	}
	number = strings.TrimRight(number, " \t")

	switch {
	case number == "" && (strings.HasPrefix(unit, "nan") || strings.HasPrefix(unit, "inf")):
		return fail(ErrInvalidNumeric)
	case exponentTail.MatchString(unit):
		return fail(ErrInvalidNumeric)
	case number == "":
		return fail(ErrInvalidNumeric)
	case !plainNumber.MatchString(number) && !groupedNumber.MatchString(number):
		return fail(ErrInvalidNumeric)
	}

	mult := int64(1 << 20)
	if unit != "" {
		m, ok := units[unit]
		if !ok {
			return fail(ErrUnrecognizedUnit)
		}
		mult = m
	}

	if negative {
		return fail(ErrOutOfBounds)
	}

	r, ok := new(big.Rat).SetString(strings.ReplaceAll(number, ",", ""))
	if !ok {
		return fail(ErrInvalidNumeric)
	}
	r.Mul(r, new(big.Rat).SetInt64(mult))
	bytes := new(big.Int).Quo(r.Num(), r.Denom())

	limit := p.Max
	if limit <= 0 {
		limit = DefaultMax
	}
	if bytes.Cmp(big.NewInt(limit)) > 0 {
		return fail(ErrOutOfBounds)
	}
	return bytes.Int64(), nil
}

func allowed(c byte) bool {
	switch {
	case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c == '.', c == ',', c == ' ', c == '\t':
		return true
	}
	return false
}

// Parse parses v with DefaultMax.
func Parse(v any) (int64, error) {
	return Parser{}.Parse(v)
}

// ParseString parses s with DefaultMax.
func ParseString(s string) (int64, error) {
	return Parser{}.ParseString(s)
}
