package geocell

import "math"

// HaversineKm returns the great-circle distance between two
// lon/lat positions in kilometers.
func HaversineKm(lon1, lat1, lon2, lat2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	a := sinLat*sinLat +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*sinLon*sinLon
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}
