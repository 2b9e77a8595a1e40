package chat

import (
	"strings"
	"testing"
)

func TestParseContent_Unfenced(t *testing.T) {
	in := "just a plain answer\nwith two lines"
	segs := ParseContent(in)

	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Kind != SegmentText {
		t.Fatalf("expected text segment, got %v", segs[0].Kind)
	}
	if segs[0].Content != in {
		t.Fatalf("content altered: %q", segs[0].Content)
	}
}

func TestParseContent_Empty(t *testing.T) {
	segs := ParseContent("")
	if len(segs) != 1 || segs[0].Kind != SegmentText || segs[0].Content != "" {
		t.Fatalf("unexpected segments for empty input: %#v", segs)
	}
}

func TestParseContent_FenceWithLanguage(t *testing.T) {
	in := "Here you go:\n```python\nprint(2+2)\n```\nDone."
	segs := ParseContent(in)

	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %#v", len(segs), segs)
	}
	if segs[0].Kind != SegmentText || segs[0].Content != "Here you go:\n" {
		t.Fatalf("unexpected leading segment: %#v", segs[0])
	}
	if segs[1].Kind != SegmentCode {
		t.Fatalf("expected code segment, got %#v", segs[1])
	}
	if segs[1].Language != "python" {
		t.Fatalf("unexpected language: %s", segs[1].Language)
	}
	if segs[1].Content != "print(2+2)\n" {
		t.Fatalf("unexpected code content: %q", segs[1].Content)
	}
	if segs[2].Kind != SegmentText || segs[2].Content != "\nDone." {
		t.Fatalf("unexpected trailing segment: %#v", segs[2])
	}
}

func TestParseContent_FenceWithoutLanguage(t *testing.T) {
	segs := ParseContent("```\nraw stuff\n```")
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Kind != SegmentCode || segs[0].Language != "text" {
		t.Fatalf("expected generic code segment, got %#v", segs[0])
	}
	if segs[0].Content != "raw stuff\n" {
		t.Fatalf("unexpected content: %q", segs[0].Content)
	}
}

func TestParseContent_FirstCloseWins(t *testing.T) {
	in := "```python\na\n```\nmiddle\n```python\nb\n```"
	segs := ParseContent(in)

	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %#v", len(segs), segs)
	}
	if segs[0].Content != "a\n" || segs[2].Content != "b\n" {
		t.Fatalf("non-greedy matching broken: %#v", segs)
	}
	if segs[1].Kind != SegmentText || segs[1].Content != "\nmiddle\n" {
		t.Fatalf("unexpected middle segment: %#v", segs[1])
	}
}

func TestParseContent_RoundTrip(t *testing.T) {
	in := "intro\n\n```go\nfmt.Println(\"hi\")\n```\n\nbetween\n```\nplain\n```\ntail"
	segs := ParseContent(in)

	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Content)
	}
	got := b.String()

	want := "intro\n\n" + "fmt.Println(\"hi\")\n" + "\n\nbetween\n" + "plain\n" + "\ntail"
	if got != want {
		t.Fatalf("round trip mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestParseContent_Idempotent(t *testing.T) {
	in := "text ```python\nx=1\n``` more"
	first := ParseContent(in)
	second := ParseContent(in)
	if len(first) != len(second) {
		t.Fatalf("parse is not stable: %d vs %d segments", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("segment %d differs between parses", i)
		}
	}
}

func TestSegmentLines_PreservesEmptyLines(t *testing.T) {
	seg := Segment{Kind: SegmentText, Content: "a\n\nb"}
	lines := seg.Lines()
	if len(lines) != 3 || lines[1] != "" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}
