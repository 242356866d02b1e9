package importer

import (
	"strconv"
	"strings"
)

const DefaultMapServiceURL = "https://osm.org"

// MapLink formats a map-service link for the coordinates.
func MapLink(mapServiceURL string, lat, lon float64) string {
	base := strings.TrimRight(strings.TrimSpace(mapServiceURL), "/")
	if base == "" {
		base = DefaultMapServiceURL
	}
	return base + "/?mlat=" + strconv.FormatFloat(lat, 'f', -1, 64) +
		"&mlon=" + strconv.FormatFloat(lon, 'f', -1, 64)
}

// AnnotateGeo appends a space and a map link to text when geo carries
// coordinates, even when text is empty. It must run before chunking so the
// link counts against the budget.
func AnnotateGeo(text string, geo GeoMetadata, mapServiceURL string) string {
	lat, lon, ok := geo.Coordinates()
	if !ok {
		return text
	}
	return text + " " + MapLink(mapServiceURL, lat, lon)
}
