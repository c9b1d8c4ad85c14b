package geo

import (
	"math"

	"inforojo/internal/domain"
)

// EarthRadiusMeters is the mean earth radius used by Haversine
const EarthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// ValidCoordinate rejects NaN, infinities and out-of-range degrees.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// NearestParadero scans paraderos and returns the closest one to (lat, lng)
// with its distance in meters. Paraderos with invalid coordinates are
// skipped; on ties the first one wins. ok is false when nothing qualifies.
func NearestParadero(lat, lng float64, paraderos []domain.Paradero) (nearest domain.Paradero, meters float64, ok bool) {
	if !ValidCoordinate(lat, lng) {
		return domain.Paradero{}, 0, false
	}

	best := math.Inf(1)
	for _, p := range paraderos {
		if !ValidCoordinate(p.Lat, p.Lng) {
			continue
		}
		d := Haversine(lat, lng, p.Lat, p.Lng)
		if d < best {
			best = d
			nearest = p
			ok = true
		}
	}
	if !ok {
		return domain.Paradero{}, 0, false
	}
	return nearest, best, true
}
