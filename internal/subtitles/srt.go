package subtitles

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Line is one parsed subtitle cue. Lines are immutable once parsed; the
// pipeline carries them by value in sequence order.
type Line struct {
	Sequence int
	Start    time.Duration
	End      time.Duration
	Text     string
}

// Seconds returns the cue duration in seconds, clamped to zero when the
// timestamps are missing or inverted.
func (l Line) Seconds() float64 {
	d := (l.End - l.Start).Seconds()
	if d < 0 || d != d {
		return 0
	}
	return d
}

// TranslatedLine pairs a parsed cue with its translation.
type TranslatedLine struct {
	Line
	TranslatedText string
}

// Parse converts raw SRT content into ordered cues. It never fails: content
// that does not parse structurally degrades to one cue per non-empty input
// line with zero timestamps, reported through the degraded return.
func Parse(content string) ([]Line, bool) {
	lines, ok := parseStructured(content)
	if ok {
		return lines, false
	}
	return parseDegraded(content), true
}

// Render reconstructs SRT text from translated cues. Sequence numbers and
// timestamps round-trip exactly for any structurally parsed input.
func Render(lines []TranslatedLine) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strconv.Itoa(line.Sequence))
		b.WriteString("\n")
		b.WriteString(formatTimestamp(line.Start))
		b.WriteString(" --> ")
		b.WriteString(formatTimestamp(line.End))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(line.TranslatedText))
		b.WriteString("\n")
	}
	return b.String()
}

func parseStructured(content string) ([]Line, bool) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	trimmed := strings.TrimSpace(normalized)
	if trimmed == "" {
		return nil, false
	}

	var lines []Line
	for _, block := range strings.Split(trimmed, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		line, ok := parseBlock(block)
		if !ok {
			return nil, false
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, false
	}
	return lines, true
}

func parseBlock(block string) (Line, bool) {
	rows := strings.Split(block, "\n")
	if len(rows) < 2 {
		return Line{}, false
	}

	sequence, err := strconv.Atoi(strings.TrimSpace(rows[0]))
	if err != nil || sequence < 0 {
		return Line{}, false
	}

	timing := rows[1]
	parts := strings.Split(timing, "-->")
	if len(parts) != 2 {
		return Line{}, false
	}
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return Line{}, false
	}
	end, err := parseTimestamp(parts[1])
	if err != nil {
		return Line{}, false
	}

	text := stripMarkup(strings.TrimSpace(strings.Join(rows[2:], "\n")))
	return Line{Sequence: sequence, Start: start, End: end, Text: text}, true
}

func parseDegraded(content string) []Line {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	var lines []Line
	for _, row := range strings.Split(normalized, "\n") {
		text := stripMarkup(strings.TrimSpace(row))
		if text == "" {
			continue
		}
		lines = append(lines, Line{Sequence: len(lines) + 1, Text: text})
	}
	return lines
}

func parseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// SRT uses a comma before milliseconds; tolerate a period.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(strings.TrimSpace(hms[0]))
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if hours < 0 || minutes < 0 || seconds < 0 || millis < 0 {
		return 0, fmt.Errorf("negative timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalMillis := d.Milliseconds()
	hours := totalMillis / 3_600_000
	totalMillis -= hours * 3_600_000
	minutes := totalMillis / 60_000
	totalMillis -= minutes * 60_000
	seconds := totalMillis / 1000
	millis := totalMillis - seconds*1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// stripMarkup drops inline formatting tags such as <i>, </font>, and ASS-style
// {\an8} overrides while keeping the surrounding text.
func stripMarkup(text string) string {
	if !strings.ContainsAny(text, "<{") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	depthAngle := 0
	depthBrace := 0
	for _, r := range text {
		switch r {
		case '<':
			depthAngle++
		case '>':
			if depthAngle > 0 {
				depthAngle--
				continue
			}
			b.WriteRune(r)
			continue
		case '{':
			depthBrace++
		case '}':
			if depthBrace > 0 {
				depthBrace--
				continue
			}
			b.WriteRune(r)
			continue
		}
		if depthAngle == 0 && depthBrace == 0 && r != '<' && r != '{' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
