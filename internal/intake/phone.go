package intake

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// countryRegions maps the country names seen in lead alerts to ISO regions.
var countryRegions = map[string]string{
	"united states":  "US",
	"usa":            "US",
	"us":             "US",
	"canada":         "CA",
	"mexico":         "MX",
	"united kingdom": "GB",
	"uk":             "GB",
	"germany":        "DE",
	"france":         "FR",
	"netherlands":    "NL",
	"australia":      "AU",
	"india":          "IN",
}

// NormalizePhone formats a phone number to E.164, using country to pick
// the parse region. If parsing fails, it returns the trimmed input.
func NormalizePhone(input, country string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	region := defaultRegion
	if r, ok := countryRegions[strings.ToLower(strings.TrimSpace(country))]; ok {
		region = r
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}
	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}
