package upstream

// IconID identifies a display icon for a weather condition. The set is
// deliberately coarser than the WMO code space: the display layer only
// distinguishes broad condition families.
type IconID string

const (
	IconClear        IconID = "clear"
	IconPartlyCloudy IconID = "partly-cloudy"
	IconOvercast     IconID = "overcast"
	IconFog          IconID = "fog"
	IconDrizzle      IconID = "drizzle"
	IconRain         IconID = "rain"
	IconFreezingRain IconID = "freezing-rain"
	IconSnow         IconID = "snow"
	IconShowers      IconID = "showers"
	IconSnowShowers  IconID = "snow-showers"
	IconThunderstorm IconID = "thunderstorm"
	IconUnknown      IconID = "unknown"
)

// ConditionIcon maps a WMO weather code to a display icon. The mapping is by
// disjoint numeric ranges and is total: any code outside the known ranges,
// including negative values, maps to IconUnknown.
func ConditionIcon(code int) IconID {
	switch {
	case code == 0:
		return IconClear
	case code >= 1 && code <= 2:
		return IconPartlyCloudy
	case code == 3:
		return IconOvercast
	case code >= 45 && code <= 48:
		return IconFog
	case code >= 51 && code <= 57:
		return IconDrizzle
	case code >= 61 && code <= 65:
		return IconRain
	case code >= 66 && code <= 67:
		return IconFreezingRain
	case code >= 71 && code <= 77:
		return IconSnow
	case code >= 80 && code <= 82:
		return IconShowers
	case code >= 85 && code <= 86:
		return IconSnowShowers
	case code >= 95 && code <= 99:
		return IconThunderstorm
	default:
		return IconUnknown
	}
}

// ConditionDescription maps a WMO weather code to a human-readable condition
// description. Like ConditionIcon it is total over the integer domain.
func ConditionDescription(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code == 1:
		return "Mainly clear"
	case code == 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code >= 45 && code <= 48:
		return "Fog"
	case code >= 51 && code <= 55:
		return "Drizzle"
	case code >= 56 && code <= 57:
		return "Freezing drizzle"
	case code == 61:
		return "Slight rain"
	case code == 63:
		return "Moderate rain"
	case code == 65:
		return "Heavy rain"
	case code == 62 || code == 64:
		return "Rain"
	case code >= 66 && code <= 67:
		return "Freezing rain"
	case code == 77:
		return "Snow grains"
	case code >= 71 && code <= 76:
		return "Snowfall"
	case code == 80:
		return "Slight rain showers"
	case code == 81:
		return "Moderate rain showers"
	case code == 82:
		return "Violent rain showers"
	case code >= 85 && code <= 86:
		return "Snow showers"
	case code == 95:
		return "Thunderstorm"
	case code >= 96 && code <= 99:
		return "Thunderstorm with hail"
	default:
		return "Unknown conditions"
	}
}
