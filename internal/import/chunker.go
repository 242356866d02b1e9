package importer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MarkerBudget is reserved for page markers such as " (12/34)".
	MarkerBudget = 9
	// MaxChunks is the first thread length that is refused.
	MaxChunks = 100
)

type Chunk struct {
	Text  string
	Index int
	Total int
}

// ChunkText splits text into posts of at most maxChars characters. Text that
// already fits is returned verbatim as a single chunk without a marker. Text
// that trims down to one segment is returned trimmed, also without a marker.
func ChunkText(text string, maxChars int) ([]Chunk, error) {
	if maxChars <= MarkerBudget {
		return nil, fmt.Errorf("max characters must be greater than %d, got %d", MarkerBudget, maxChars)
	}

	length := utf8.RuneCountInString(text)
	if length <= maxChars {
		return []Chunk{{Text: text, Index: 1, Total: 1}}, nil
	}

	segments := SplitSegments(text, maxChars-MarkerBudget)
	if len(segments) <= 1 {
		trimmed := strings.TrimSpace(text)
		if len(segments) == 1 {
			trimmed = segments[0]
		}
		return []Chunk{{Text: trimmed, Index: 1, Total: 1}}, nil
	}
	if len(segments) >= MaxChunks {
		return nil, &TextTooLongError{
			Characters: length,
			MaxChars:   maxChars,
			Segments:   len(segments),
		}
	}
	return LabelSegments(segments), nil
}

// SplitSegments greedily cuts text into trimmed segments of at most
// segmentSize characters. A segment ends at the furthest boundary
// punctuation (. ! ? , ;) followed by whitespace or the end of text. Without
// one it ends at the last whitespace, and failing that it is cut at
// segmentSize. The remainder is taken whole once it fits.
func SplitSegments(text string, segmentSize int) []string {
	if segmentSize <= 0 {
		return nil
	}

	runes := []rune(text)
	segments := make([]string, 0, len(runes)/segmentSize+1)
	pos := 0
	for {
		for pos < len(runes) && unicode.IsSpace(runes[pos]) {
			pos++
		}
		if pos >= len(runes) {
			break
		}

		if len(runes)-pos <= segmentSize {
			segments = append(segments, strings.TrimSpace(string(runes[pos:])))
			break
		}

		end := segmentEnd(runes, pos, pos+segmentSize)
		if segment := strings.TrimSpace(string(runes[pos:end])); segment != "" {
			segments = append(segments, segment)
		}
		pos = end
	}
	return segments
}

// LabelSegments appends " (i/n)" to every segment once the total is known.
func LabelSegments(segments []string) []Chunk {
	total := len(segments)
	chunks := make([]Chunk, 0, total)
	for i, segment := range segments {
		chunks = append(chunks, Chunk{
			Text:  fmt.Sprintf("%s (%d/%d)", segment, i+1, total),
			Index: i + 1,
			Total: total,
		})
	}
	return chunks
}

// segmentEnd picks the exclusive end of the segment starting at start. limit
// is start+segmentSize and is always < len(runes) here.
func segmentEnd(runes []rune, start, limit int) int {
	for end := limit; end > start; end-- {
		if isSegmentBoundary(runes[end-1]) && (end == len(runes) || unicode.IsSpace(runes[end])) {
			return end
		}
	}
	for end := limit; end > start; end-- {
		if unicode.IsSpace(runes[end]) {
			return end
		}
	}
	return limit
}

func isSegmentBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', ',', ';':
		return true
	default:
		return false
	}
}
