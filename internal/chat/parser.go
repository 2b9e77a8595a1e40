package chat

import (
	"regexp"
	"strings"
)

type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentCode
)

// Segment is one run of a message body: prose, or the inside of a fenced
// code block tagged with its language.
type Segment struct {
	Kind     SegmentKind
	Language string
	Content  string
}

// Lines splits a text segment for line-oriented rendering. Empty lines are
// preserved.
func (s Segment) Lines() []string {
	return strings.Split(s.Content, "\n")
}

// Non-greedy: the first closing fence wins.
var fenceRe = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)```")

// ParseContent splits raw assistant text into alternating text/code
// segments. Text outside fences is preserved exactly; a fence without a
// language tag yields a generic "text" code segment. Unfenced input comes
// back as a single text segment. Pure function, safe to call per render.
func ParseContent(content string) []Segment {
	var segs []Segment
	last := 0
	for _, idx := range fenceRe.FindAllStringSubmatchIndex(content, -1) {
		if idx[0] > last {
			segs = append(segs, Segment{Kind: SegmentText, Content: content[last:idx[0]]})
		}
		lang := "text"
		if idx[2] >= 0 {
			lang = content[idx[2]:idx[3]]
		}
		segs = append(segs, Segment{Kind: SegmentCode, Language: lang, Content: content[idx[4]:idx[5]]})
		last = idx[1]
	}
	if last < len(content) {
		segs = append(segs, Segment{Kind: SegmentText, Content: content[last:]})
	}
	if len(segs) == 0 {
		segs = append(segs, Segment{Kind: SegmentText, Content: content})
	}
	return segs
}
