package geocode

import "github.com/Liebig-2005/farmassist/internal/common"

// Region is the single country to which search results are restricted.
type Region struct {
	Name string
	Code string
}

// Allows reports whether a candidate belongs to the region. A candidate
// passes on any one of: ISO code match, exact country name match, or
// case-insensitive substring match on the country name. The substring test
// mirrors the upstream data's inconsistent country labels and can
// false-positive on country names containing the region's name.
func (r Region) Allows(country, countryCode string) bool {
	if r.Code != "" && countryCode == r.Code {
		return true
	}
	if country == r.Name {
		return true
	}
	return country != "" && common.ContainsFold(country, r.Name)
}
