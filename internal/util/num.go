package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	moneyPattern = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// ParseMoney parses a currency cell such as "$1,234.56" or "1 234,56".
// Returns nil when the text does not contain a usable number.
func ParseMoney(input string) *float64 {
	s := strings.ReplaceAll(input, " ", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, " ", "")
	return parseNumericToken(s)
}

// ParseQuantity parses a quantity cell such as "3,890" or "11,000.000".
func ParseQuantity(input string) *float64 {
	s := strings.ReplaceAll(input, " ", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, " ", "")
	return parseNumericToken(s)
}

// FindMoney returns every currency token in a text line, left to right.
func FindMoney(line string) []float64 {
	out := []float64{}
	for _, m := range moneyPattern.FindAllStringSubmatch(line, -1) {
		if v := ParseMoney(m[1]); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func parseNumericToken(token string) *float64 {
	compact := normalizeNumericToken(token)
	parsed, err := strconv.ParseFloat(compact, 64)
	if err != nil {
		return nil
	}
	return FloatPtr(parsed)
}

func normalizeNumericToken(token string) string {
	if regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`).MatchString(token) {
		return strings.ReplaceAll(token, ",", "")
	}
	if strings.Contains(token, ",") && !strings.Contains(token, ".") {
		return strings.ReplaceAll(token, ",", ".")
	}
	return token
}

// NormalizeSpaces collapses runs of whitespace into single spaces.
func NormalizeSpaces(input string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(input, " "))
}
