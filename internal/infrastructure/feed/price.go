package feed

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Matches the first number of a price string once spaces are removed,
// e.g. "1299,00" in "1299,00DH"
var priceNumberPattern = regexp.MustCompile(`\d[\d.,]*`)

// ParsePrice reads retailer price strings such as "1 299,00 DH", "1.299,00",
// "1,299.00 MAD" or "4990". A separator followed by one or two trailing
// digits is the decimal mark; every other separator groups thousands.
func ParsePrice(raw string) (float64, bool) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.Is(unicode.Zs, r) {
			return -1
		}
		return r
	}, raw)

	number := priceNumberPattern.FindString(compact)
	number = strings.TrimRight(number, ".,")
	if number == "" {
		return 0, false
	}

	decimals := ""
	if i := strings.LastIndexAny(number, ".,"); i >= 0 {
		if tail := number[i+1:]; len(tail) <= 2 {
			decimals = tail
			number = number[:i]
		}
	}

	integer := strings.NewReplacer(".", "", ",", "").Replace(number)
	if decimals != "" {
		integer += "." + decimals
	}

	value, err := strconv.ParseFloat(integer, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
