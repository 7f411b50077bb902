package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionAllows(t *testing.T) {
	region := Region{Name: "India", Code: "IN"}

	tests := []struct {
		name        string
		country     string
		countryCode string
		want        bool
	}{
		{"iso code match", "Bharat", "IN", true},
		{"exact name match", "India", "", true},
		{"case-insensitive substring", "Republic of india", "", true},
		{"different country", "France", "FR", false},
		{"empty candidate", "", "", false},
		{"code takes precedence over name", "United Kingdom", "IN", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, region.Allows(tt.country, tt.countryCode))
		})
	}
}

func TestRegionAllowsWithoutCode(t *testing.T) {
	region := Region{Name: "India"}

	assert.True(t, region.Allows("India", ""))
	assert.False(t, region.Allows("United Kingdom", "IN"))
}
