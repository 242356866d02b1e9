package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/samhotchkiss/postport/internal/media"
)

type GeoSource int

const (
	GeoAbsent GeoSource = iota
	GeoPhoto
	GeoVideo
)

// GeoMetadata is resolved once at parse time from either the photo or the
// video metadata block of an item's media.
type GeoMetadata struct {
	Source    GeoSource
	Latitude  float64
	Longitude float64
}

func (g GeoMetadata) Coordinates() (lat, lon float64, ok bool) {
	if g.Source == GeoAbsent {
		return 0, 0, false
	}
	return g.Latitude, g.Longitude, true
}

type MediaRef struct {
	URI               string
	Title             string
	MimeType          string
	CreationTimestamp int64
}

// SourceItem is one post record from the export, before chunking.
type SourceItem struct {
	Position          int
	CreationTimestamp int64
	Title             string
	Media             []MediaRef
	Geo               GeoMetadata
}

type exportRawItem struct {
	Title             string           `json:"title"`
	CreationTimestamp *int64           `json:"creation_timestamp"`
	Media             []exportRawMedia `json:"media"`
}

type exportRawMedia struct {
	URI               string             `json:"uri"`
	CreationTimestamp int64              `json:"creation_timestamp"`
	Title             string             `json:"title"`
	MediaMetadata     *exportRawMetadata `json:"media_metadata"`
}

type exportRawMetadata struct {
	PhotoMetadata *exportRawExifBlock `json:"photo_metadata"`
	VideoMetadata *exportRawExifBlock `json:"video_metadata"`
}

type exportRawExifBlock struct {
	ExifData []exportRawExif `json:"exif_data"`
}

type exportRawExif struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ParseExportFile reads an export document from disk.
func ParseExportFile(path string) ([]SourceItem, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("export path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export %q: %w", path, err)
	}
	defer f.Close()

	items, err := ParseExport(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse export %q: %w", path, err)
	}
	return items, nil
}

// ParseExport decodes a JSON array of post records. Items keep the export
// order; see SortSourceItems.
func ParseExport(r io.Reader) ([]SourceItem, error) {
	var raw []exportRawItem
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid export document: %w", err)
	}

	items := make([]SourceItem, 0, len(raw))
	for idx, rawItem := range raw {
		if len(rawItem.Media) == 0 {
			return nil, fmt.Errorf("export item %d has no media", idx)
		}

		item := SourceItem{
			Position: idx,
			Title:    rawItem.Title,
			Media:    make([]MediaRef, 0, len(rawItem.Media)),
		}
		for mediaIdx, rawMedia := range rawItem.Media {
			uri := strings.TrimSpace(rawMedia.URI)
			if uri == "" {
				return nil, fmt.Errorf("export item %d media %d has no uri", idx, mediaIdx)
			}
			item.Media = append(item.Media, MediaRef{
				URI:               uri,
				Title:             rawMedia.Title,
				MimeType:          media.MimeTypeFor(uri),
				CreationTimestamp: rawMedia.CreationTimestamp,
			})
		}

		if rawItem.CreationTimestamp != nil {
			item.CreationTimestamp = *rawItem.CreationTimestamp
		} else {
			item.CreationTimestamp = rawItem.Media[0].CreationTimestamp
		}
		item.Geo = resolveGeoMetadata(rawItem.Media)

		items = append(items, item)
	}

	return items, nil
}

// SortSourceItems orders items by creation time, keeping export order for ties.
func SortSourceItems(items []SourceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreationTimestamp < items[j].CreationTimestamp
	})
}

func resolveGeoMetadata(mediaItems []exportRawMedia) GeoMetadata {
	for _, rawMedia := range mediaItems {
		if rawMedia.MediaMetadata == nil {
			continue
		}
		if lat, lon, ok := firstCoordinates(rawMedia.MediaMetadata.PhotoMetadata); ok {
			return GeoMetadata{Source: GeoPhoto, Latitude: lat, Longitude: lon}
		}
		if lat, lon, ok := firstCoordinates(rawMedia.MediaMetadata.VideoMetadata); ok {
			return GeoMetadata{Source: GeoVideo, Latitude: lat, Longitude: lon}
		}
	}
	return GeoMetadata{Source: GeoAbsent}
}

func firstCoordinates(block *exportRawExifBlock) (float64, float64, bool) {
	if block == nil {
		return 0, 0, false
	}
	for _, exif := range block.ExifData {
		if exif.Latitude != nil && exif.Longitude != nil {
			return *exif.Latitude, *exif.Longitude, true
		}
	}
	return 0, 0, false
}
