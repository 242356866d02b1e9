package importer

import (
	"golang.org/x/text/encoding/charmap"
)

// SelectCaption returns the item's own title, falling back to the title of
// its first media item.
func SelectCaption(item SourceItem) string {
	if item.Title != "" {
		return item.Title
	}
	if len(item.Media) > 0 {
		return item.Media[0].Title
	}
	return ""
}

// ReencodeLatin1 maps each code point of s onto its ISO-8859-1 byte and
// reads the resulting bytes as UTF-8. Exports write UTF-8 captions as one
// escaped code point per byte; this undoes that. The result is not validated.
// Text containing code points above U+00FF is already decoded and is
// returned unchanged.
func ReencodeLatin1(s string) string {
	if s == "" {
		return s
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return s
	}
	return raw
}

// NormalizeCaption selects and re-encodes an item's caption.
func NormalizeCaption(item SourceItem) string {
	return ReencodeLatin1(SelectCaption(item))
}
