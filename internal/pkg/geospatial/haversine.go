package geospatial

import (
	"math"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two points.
// Out-of-range coordinates are not rejected.
func DistanceKm(a, b domain.GeoPoint) float64 {
	return haversineKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineKm(lat1, lon1, lat2, lon2) * 1000 // meters
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a just past 1 for antipodal points.
	a = math.Min(1, a)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
// It is a prefilter: every point within radiusMeters lies inside it.
func BoundingBox(center domain.GeoPoint, radiusMeters float64) domain.Bounds {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(center.Lat)))

	return domain.Bounds{
		MinLat: center.Lat - latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLat: center.Lat + latDelta,
		MaxLon: center.Lon + lonDelta,
	}
}

// OffsetNorth returns the point distanceKm due north of p along its meridian.
func OffsetNorth(p domain.GeoPoint, distanceKm float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat + toDeg(distanceKm/earthRadiusKm), Lon: p.Lon}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
