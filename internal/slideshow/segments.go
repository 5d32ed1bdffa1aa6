package slideshow

import (
	"regexp"
	"strings"
)

// segmentBoundary matches a sentence terminator followed by whitespace, or a
// line break. The terminator stays with the preceding sentence.
var segmentBoundary = regexp.MustCompile(`([.!?])[ \t]+|\r?\n`)

// SplitScript splits a script into ordered, non-empty segments.
func SplitScript(script Script) []Segment {
	text := segmentBoundary.ReplaceAllString(string(script), "$1\n")

	var segments []Segment
	for _, piece := range strings.Split(text, "\n") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		segments = append(segments, Segment{Index: len(segments), Text: piece})
	}
	return segments
}
