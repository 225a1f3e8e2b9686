package tools

import "strings"

// RegionAll asks the search provider not to restrict results by country.
const RegionAll = "ALL"

var braveRegions = map[string]bool{
	"AR": true, "AU": true, "AT": true, "BE": true, "BR": true, "CA": true,
	"CL": true, "DK": true, "FI": true, "FR": true, "DE": true, "HK": true,
	"IN": true, "ID": true, "IT": true, "JP": true, "KR": true, "MY": true,
	"MX": true, "NL": true, "NZ": true, "NO": true, "CN": true, "PL": true,
	"PT": true, "PH": true, "RU": true, "SA": true, "ZA": true, "ES": true,
	"SE": true, "CH": true, "TW": true, "TR": true, "GB": true, "US": true,
}

// NormalizeRegion maps an ISO country code onto a region the search API
// accepts, falling back to RegionAll.
func NormalizeRegion(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !braveRegions[code] {
		return RegionAll
	}
	return code
}
