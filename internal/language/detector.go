// Package language guesses the language of status text for accounts without
// a configured default.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Detector returns an ISO 639-1 code, or "" when the text gives no reliable
// signal.
type Detector struct {
	minConfidence float64
}

func NewDetector() *Detector {
	return &Detector{minConfidence: 0.5}
}

func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if info.Confidence < d.minConfidence {
		return ""
	}
	return info.Lang.Iso6391()
}
