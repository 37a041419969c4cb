package geo

import "strconv"

// SearchRadius is the half-width, in degrees, of the box searched around a pin.
const SearchRadius = 1.0

const (
	minLongitude = -180.0
	maxLongitude = 180.0
	minLatitude  = -90.0
	maxLatitude  = 90.0
)

// BoundingBox is a latitude/longitude rectangle. Boxes near the antimeridian
// are clipped, never wrapped.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// BoundingBoxFor returns the search box centred on the given coordinate,
// clamped to valid longitude and latitude ranges.
func BoundingBoxFor(lat, lon float64) BoundingBox {
	return BoundingBox{
		MinLon: max(lon-SearchRadius, minLongitude),
		MinLat: max(lat-SearchRadius, minLatitude),
		MaxLon: min(lon+SearchRadius, maxLongitude),
		MaxLat: min(lat+SearchRadius, maxLatitude),
	}
}

// String renders the box as "minLon,minLat,maxLon,maxLat".
func (b BoundingBox) String() string {
	return formatDegrees(b.MinLon) + "," + formatDegrees(b.MinLat) + "," +
		formatDegrees(b.MaxLon) + "," + formatDegrees(b.MaxLat)
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ValidCoordinate reports whether lat and lon lie within the clamping ranges.
func ValidCoordinate(lat, lon float64) bool {
	return lat >= minLatitude && lat <= maxLatitude && lon >= minLongitude && lon <= maxLongitude
}
