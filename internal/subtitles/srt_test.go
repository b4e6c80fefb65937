package subtitles_test

import (
	"strings"
	"testing"
	"time"

	"subweave/internal/subtitles"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:04,250
Hello there.

2
00:00:04,500 --> 00:00:06,000
<i>General Kenobi!</i>

3
00:01:02,750 --> 00:01:05,000
You are a bold one.
`

func TestParseStructured(t *testing.T) {
	lines, degraded := subtitles.Parse(sampleSRT)
	if degraded {
		t.Fatal("expected structured parse")
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0].Sequence != 1 || lines[2].Sequence != 3 {
		t.Fatalf("unexpected sequences: %+v", lines)
	}
	if lines[0].Start != time.Second || lines[0].End != 4250*time.Millisecond {
		t.Fatalf("unexpected timestamps: %+v", lines[0])
	}
	if lines[1].Text != "General Kenobi!" {
		t.Fatalf("markup not stripped: %q", lines[1].Text)
	}
	if got := lines[0].Seconds(); got != 3.25 {
		t.Fatalf("unexpected duration: %v", got)
	}
}

func TestParseDegradedNeverFails(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"plain text", "first line\nsecond line\n\nthird line", 3},
		{"missing timing", "1\nno arrow here\ntext", 3},
		{"garbage timestamps", "1\n00:xx:01,000 --> 00:00:02,000\nhi", 3},
		{"empty", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lines, degraded := subtitles.Parse(tc.content)
			if tc.want > 0 && !degraded {
				t.Fatal("expected degraded parse")
			}
			if len(lines) != tc.want {
				t.Fatalf("expected %d lines, got %d", tc.want, len(lines))
			}
			for i, line := range lines {
				if line.Sequence != i+1 {
					t.Fatalf("expected 1-based sequence, got %d at %d", line.Sequence, i)
				}
				if line.Seconds() != 0 {
					t.Fatalf("degraded line should have zero duration: %+v", line)
				}
			}
		})
	}
}

func TestDurationClampsNegative(t *testing.T) {
	line := subtitles.Line{Start: 5 * time.Second, End: 2 * time.Second}
	if got := line.Seconds(); got != 0 {
		t.Fatalf("expected clamped duration, got %v", got)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	lines, degraded := subtitles.Parse(sampleSRT)
	if degraded {
		t.Fatal("expected structured parse")
	}
	translated := make([]subtitles.TranslatedLine, len(lines))
	for i, line := range lines {
		translated[i] = subtitles.TranslatedLine{Line: line, TranslatedText: "T: " + line.Text}
	}

	rendered := subtitles.Render(translated)
	again, degraded := subtitles.Parse(rendered)
	if degraded {
		t.Fatalf("rendered output failed structured parse:\n%s", rendered)
	}
	if len(again) != len(lines) {
		t.Fatalf("line count changed: %d != %d", len(again), len(lines))
	}
	for i := range lines {
		if again[i].Sequence != lines[i].Sequence {
			t.Fatalf("sequence changed at %d", i)
		}
		if again[i].Start != lines[i].Start || again[i].End != lines[i].End {
			t.Fatalf("timestamps changed at %d: %+v != %+v", i, again[i], lines[i])
		}
		if !strings.HasPrefix(again[i].Text, "T: ") {
			t.Fatalf("translated text lost at %d: %q", i, again[i].Text)
		}
	}
}

func TestStripMarkupKeepsBareBrackets(t *testing.T) {
	lines, _ := subtitles.Parse("1\n00:00:01,000 --> 00:00:02,000\n{\\an8}5 > 3, right?")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	if lines[0].Text != "5 > 3, right?" {
		t.Fatalf("unexpected text: %q", lines[0].Text)
	}
}
