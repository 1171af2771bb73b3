package core

import (
	"strings"
	"unicode/utf8"
)

// Fractional boundaries between the header, body and footer buckets
const (
	stampHeaderLimit = 0.2
	stampBodyLimit   = 0.7
)

// LocateStamp finds the last occurrence of any footer indicator in normalized
// text and buckets its position relative to the text length. Matching is
// case-insensitive and positions are measured in characters.
func LocateStamp(text string, indicators []string) StampPosition {
	t := strings.ToLower(text)
	best := -1
	for _, ind := range indicators {
		if idx := strings.LastIndex(t, strings.ToLower(ind)); idx > best {
			best = idx
		}
	}
	if best < 0 {
		return StampNone
	}

	pos := utf8.RuneCountInString(t[:best])
	length := utf8.RuneCountInString(t)
	if length < 1 {
		length = 1
	}
	frac := float64(pos) / float64(length)

	switch {
	case frac < stampHeaderLimit:
		return StampHeader
	case frac < stampBodyLimit:
		return StampBody
	default:
		return StampFooter
	}
}
