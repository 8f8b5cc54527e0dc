package geo

import (
	"regexp"
	"strings"
)

var euCountries = []string{
	"germany", "france", "spain", "italy", "netherlands", "poland", "belgium", "sweden", "austria", "ireland",
	"portugal", "czech", "czechia", "romania", "hungary", "greece", "finland", "denmark", "bulgaria", "croatia",
	"slovakia", "slovenia", "estonia", "latvia", "lithuania", "luxembourg", "malta", "cyprus",
}

var usPattern = regexp.MustCompile(`united states|usa|us\b`)

// Segment buckets a "City, Country" value into us, eu or other using the
// last comma separated part as the country.
func Segment(cityCountry string) string {
	parts := strings.Split(cityCountry, ",")
	country := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
	if country == "" {
		return "other"
	}
	if usPattern.MatchString(country) {
		return "us"
	}
	for _, c := range euCountries {
		if strings.Contains(country, c) {
			return "eu"
		}
	}
	return "other"
}
