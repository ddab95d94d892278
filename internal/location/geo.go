package location

import "math"

// EarthRadius is the WGS84 semi-major axis in metres.
const EarthRadius = 6378137.0

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// HaversineDistance returns the great-circle distance in metres between two
// points.
func HaversineDistance(p1, p2 Point) float64 {
	lat1 := degreesToRadians(p1.Lat)
	lon1 := degreesToRadians(p1.Lng)
	lat2 := degreesToRadians(p2.Lat)
	lon2 := degreesToRadians(p2.Lng)

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}
