package watch

import (
	"regexp"
	"strconv"
	"strings"

	"mkessler/pricewatch/pkg/errors"
)

// priceRe matches a dollar amount with optional thousands separators and an
// optional two-decimal fraction, e.g. "$1,299.99".
var priceRe = regexp.MustCompile(`\$\d{1,3}(,\d{3})*(\.\d{2})?`)

// MatchPolicy decides which dollar amount wins when the extracted text
// contains more than one, e.g. a strikethrough original price next to the
// current one.
type MatchPolicy int

const (
	// MatchFirst uses the leftmost dollar amount. This is the default
	// resolution policy.
	MatchFirst MatchPolicy = iota
	// MatchLargest uses the largest dollar amount.
	MatchLargest
)

// Extractor parses a currency string into a numeric price.
type Extractor struct {
	Policy MatchPolicy
}

// Extract returns the price found in text according to the extractor's
// match policy. It fails with a parse error when no currency-shaped
// substring is present. item is used for error attribution only.
func (e Extractor) Extract(item, text string) (float64, error) {
	matches := priceRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return 0, errors.NewParse(item, "no price pattern found in element text", nil)
	}

	switch e.Policy {
	case MatchLargest:
		best := 0.0
		found := false
		for _, m := range matches {
			v, err := parseAmount(m)
			if err != nil {
				continue
			}
			if !found || v > best {
				best = v
				found = true
			}
		}
		if !found {
			return 0, errors.NewParse(item, "no parseable price in element text", nil)
		}
		return best, nil
	default:
		return parseAmount(matches[0])
	}
}

func parseAmount(m string) (float64, error) {
	m = strings.TrimPrefix(m, "$")
	m = strings.ReplaceAll(m, ",", "")
	return strconv.ParseFloat(m, 64)
}
