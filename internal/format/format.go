// Package format turns raw indexer amounts and denoms into display strings.
//
// Rounding is exact decimal rounding, half away from zero: a value of 1.005
// formats as "1.01", where rounding the nearest binary double would give "1.00".
package format

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is assumed for denoms missing from the token table.
const DefaultDecimals = 6

// Raw amounts beyond the float64 range format as infinities instead of
// expanding every digit.
const (
	PositiveInfinity = "InfinityM"
	NegativeInfinity = "-Infinity"

	maxMagnitude = 309  // digits before the point of math.MaxFloat64
	minMagnitude = -324 // below the smallest float64 subnormal
)

var (
	tinyThreshold  = decimal.New(1, -6)
	smallThreshold = decimal.New(1, -2)
	one            = decimal.New(1, 0)
	thousand       = decimal.New(1, 3)
	million        = decimal.New(1, 6)
	maxFloat       = decimal.RequireFromString("1.7976931348623157e308")

	// numericPrefix matches the leading number of a raw amount, the way a
	// lenient float parser reads "12abc" as 12.
	numericPrefix = regexp.MustCompile(`^\s*([+-]?)(\d*)(?:\.(\d*))?(?:[eE]([+-]?\d+))?`)
)

// Token is the static display metadata of a denom
type Token struct {
	DisplayName string
	Decimals    uint8
}

// TokenTable is an immutable denom -> Token lookup
type TokenTable struct {
	tokens map[string]Token
}

// NewTokenTable copies tokens into a new table
func NewTokenTable(tokens map[string]Token) *TokenTable {
	t := &TokenTable{tokens: make(map[string]Token, len(tokens))}
	for denom, tok := range tokens {
		t.tokens[denom] = tok
	}
	return t
}

// Lookup returns the configured metadata for denom
func (t *TokenTable) Lookup(denom string) (Token, bool) {
	if t == nil {
		return Token{}, false
	}
	tok, ok := t.tokens[denom]
	return tok, ok
}

// Decimals returns the configured decimals for denom, or DefaultDecimals
func (t *TokenTable) Decimals(denom string) uint8 {
	if tok, ok := t.Lookup(denom); ok {
		return tok.Decimals
	}
	return DefaultDecimals
}

// Name returns a display label for denom. Configured tokens always win; the
// fallbacks only look at the denom's shape and are best-effort labels.
func (t *TokenTable) Name(denom string) string {
	if tok, ok := t.Lookup(denom); ok && tok.DisplayName != "" {
		return tok.DisplayName
	}

	switch {
	case strings.Contains(denom, "factory/"):
		return lastSegment(denom)
	case strings.Contains(denom, "gamm/pool/"):
		return "GAMM-" + lastSegment(denom)
	case strings.Contains(denom, "ibc/"):
		return "IBC Token"
	default:
		return denom
	}
}

// Amount formats a raw smallest-unit amount of denom for display.
// Unparsable input yields "0".
func (t *TokenTable) Amount(raw, denom string) string {
	n, inf, ok := parseAmount(raw)
	switch {
	case !ok:
		return "0"
	case inf > 0:
		return PositiveInfinity
	case inf < 0:
		return NegativeInfinity
	}
	return FormatValue(n.Shift(-int32(t.Decimals(denom))))
}

// FormatValue applies the tiered precision rules to a value already
// expressed in whole tokens. The first matching tier wins.
func FormatValue(value decimal.Decimal) string {
	switch {
	case value.LessThan(tinyThreshold):
		return value.StringFixed(14)
	case value.LessThan(smallThreshold):
		return value.StringFixed(8)
	case value.GreaterThanOrEqual(million):
		return value.Shift(-6).StringFixed(2) + "M"
	case value.GreaterThanOrEqual(thousand):
		return value.Shift(-3).StringFixed(2) + "K"
	case value.GreaterThanOrEqual(one):
		return value.StringFixed(2)
	default:
		return value.StringFixed(6)
	}
}

// ParseAmount reads the leading decimal number of raw. Trailing garbage is
// ignored; ok is false when raw does not start with a number or when the
// number lies outside the float64 range.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	n, inf, ok := parseAmount(raw)
	if !ok || inf != 0 {
		return decimal.Zero, false
	}
	return n, true
}

// parseAmount is ParseAmount with overflow reported as inf (+1 or -1).
// Values too small for a float64 read as zero.
func parseAmount(raw string) (n decimal.Decimal, inf int, ok bool) {
	m := numericPrefix.FindStringSubmatch(raw)
	if m == nil {
		return decimal.Zero, 0, false
	}
	sign, intPart, fracPart, exp := m[1], m[2], m[3], m[4]
	if intPart == "" && fracPart == "" {
		return decimal.Zero, 0, false
	}

	digits := intPart + fracPart
	significant := strings.TrimLeft(digits, "0")
	if significant == "" {
		return decimal.Zero, 0, true
	}

	overflow := 1
	if sign == "-" {
		overflow = -1
	}

	var e int64
	if exp != "" {
		var err error
		if e, err = strconv.ParseInt(exp, 10, 64); err != nil {
			// Only out-of-range exponents fail to parse
			if strings.HasPrefix(exp, "-") {
				return decimal.Zero, 0, true
			}
			return decimal.Zero, overflow, true
		}
	}

	// Clamp so the magnitude sum below cannot wrap
	switch {
	case e > math.MaxInt32:
		return decimal.Zero, overflow, true
	case e < math.MinInt32:
		return decimal.Zero, 0, true
	}

	magnitude := int64(len(intPart)-(len(digits)-len(significant))) + e
	switch {
	case magnitude > maxMagnitude:
		return decimal.Zero, overflow, true
	case magnitude < minMagnitude:
		return decimal.Zero, 0, true
	}

	if intPart == "" {
		intPart = "0"
	}
	var b strings.Builder
	if sign == "-" {
		b.WriteString("-")
	}
	b.WriteString(intPart)
	if fracPart != "" {
		b.WriteString(".")
		b.WriteString(fracPart)
	}
	if exp != "" {
		b.WriteString("e")
		b.WriteString(exp)
	}

	n, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, 0, false
	}
	if n.Abs().GreaterThan(maxFloat) {
		return decimal.Zero, overflow, true
	}
	return n, 0, true
}

// IsPositive reports whether raw parses to a number greater than zero
func IsPositive(raw string) bool {
	n, inf, ok := parseAmount(raw)
	return ok && (inf > 0 || (inf == 0 && n.IsPositive()))
}

func lastSegment(denom string) string {
	return denom[strings.LastIndex(denom, "/")+1:]
}
