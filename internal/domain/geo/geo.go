package geo

import "math"

// EarthRadiusMeters is the mean earth radius used for all distance math.
const EarthRadiusMeters = 6371000.0

const (
	// CheckInRadiusMeters bounds on-site actions (visit check-in, registration OTP).
	CheckInRadiusMeters = 100.0
	// ServiceAreaKm bounds agent assignment eligibility.
	ServiceAreaKm = 100.0
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is inside lat/lng ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceMeters returns the haversine distance between two points.
func DistanceMeters(a, b Point) float64 {
	phi1 := toRad(a.Lat)
	phi2 := toRad(b.Lat)
	dPhi := toRad(b.Lat - a.Lat)
	dLambda := toRad(b.Lng - a.Lng)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// DistanceKm returns the haversine distance in kilometres.
func DistanceKm(a, b Point) float64 {
	return DistanceMeters(a, b) / 1000
}

// WithinCheckInRadius reports whether a reading is close enough to the property
// for an on-site action. Distances are compared at centimetre precision, so a
// reading at exactly 100m passes and 100.01m fails.
func WithinCheckInRadius(reading, property Point) (bool, float64) {
	d := roundCentimetres(DistanceMeters(reading, property))
	return d <= CheckInRadiusMeters, d
}

// Destination returns the point reached travelling the given distance from p
// along an initial bearing (degrees clockwise from north).
func Destination(p Point, bearingDeg, meters float64) Point {
	delta := meters / EarthRadiusMeters
	theta := toRad(bearingDeg)
	phi1 := toRad(p.Lat)
	lambda1 := toRad(p.Lng)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)
	return Point{Lat: toDeg(phi2), Lng: toDeg(lambda2)}
}

func roundCentimetres(m float64) float64 {
	return math.Round(m*100) / 100
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }
