package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Stamp tokens are inline references to named decorative images, embedded
// in a message body as "[stamp:<name>]". Names are never validated against
// a vocabulary here; resolving a name to an image (or to a broken-image
// placeholder) happens at render time.

var stampPattern = regexp.MustCompile(`\[stamp:([^\[\]]+)\]`)

// SegmentKind discriminates the parts of a stamp-split body.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentStamp
)

// Segment is one alternating piece of a split body: plain text or a stamp
// name. For a stamp segment, Value holds the name without delimiters.
type Segment struct {
	Kind  SegmentKind
	Value string
}

// SplitStamps splits a body on stamp tokens into alternating text and stamp
// segments. Text segments may be empty but are always present on both sides
// of a stamp, so a body that is exactly one token yields ["", name, ""].
func SplitStamps(body string) []Segment {
	matches := stampPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return []Segment{{Kind: SegmentText, Value: body}}
	}

	segments := make([]Segment, 0, 2*len(matches)+1)
	prev := 0
	for _, m := range matches {
		segments = append(segments,
			Segment{Kind: SegmentText, Value: body[prev:m[0]]},
			Segment{Kind: SegmentStamp, Value: body[m[2]:m[3]]},
		)
		prev = m[1]
	}
	return append(segments, Segment{Kind: SegmentText, Value: body[prev:]})
}

// StampNames returns the names of all stamp tokens in order of appearance.
func StampNames(body string) []string {
	var names []string
	for _, m := range stampPattern.FindAllStringSubmatch(body, -1) {
		names = append(names, m[1])
	}
	return names
}

// InsertStamp places a stamp token at the rune cursor position, or at the
// end of the body when cursor is negative or past the end.
func InsertStamp(body, name string, cursor int) string {
	token := fmt.Sprintf("[stamp:%s]", name)
	runes := []rune(body)
	if cursor < 0 || cursor >= len(runes) {
		return body + token
	}
	var b strings.Builder
	b.WriteString(string(runes[:cursor]))
	b.WriteString(token)
	b.WriteString(string(runes[cursor:]))
	return b.String()
}
