package normalizer

import "math"

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Compass returns the name of the 16-point compass bucket holding degrees. Each bucket is 22.5° wide and centered on
// its direction, so N covers [-11.25, 11.25).
func Compass(degrees float64) string {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return ""
	}
	bucket := int(math.Floor((degrees+11.25)/22.5)) % len(compassPoints)
	if bucket < 0 {
		bucket += len(compassPoints)
	}
	return compassPoints[bucket]
}

func compassOf(degrees number) string {
	if !degrees.valid {
		return ""
	}
	return Compass(degrees.value)
}
