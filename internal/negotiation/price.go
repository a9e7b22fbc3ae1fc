package negotiation

import (
	"strconv"
	"strings"
)

// CoercePrice parses raw price input the way the client forms do: anything
// that does not parse as a number coerces to 0 and is silently accepted
// rather than rejected. Callers relying on rejection must validate first.
func CoercePrice(raw string) float64 {
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return price
}

// FormatPrice renders a price for chat messages, dropping a trailing ".0"
// so whole amounts read as ₪30, not ₪30.00.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
