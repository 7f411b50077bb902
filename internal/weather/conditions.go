package weather

// WMO weather interpretation codes as reported by Open-Meteo.
var conditionLabels = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// ConditionLabel maps a weather code to a human-readable label. A nil code
// yields "N/A"; a code outside the table yields "Unknown".
func ConditionLabel(code *int) string {
	if code == nil {
		return "N/A"
	}
	if label, ok := conditionLabels[*code]; ok {
		return label
	}
	return "Unknown"
}
