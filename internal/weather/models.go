package weather

// Location represents a resolved place for which weather can be fetched.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
}

// Report is the normalized weather view for a single local hour.
type Report struct {
	City        string  `json:"city,omitempty"`
	Country     string  `json:"country,omitempty"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	WeatherCode *int    `json:"weatherCode,omitempty"`
	Condition   string  `json:"condition"`
}
