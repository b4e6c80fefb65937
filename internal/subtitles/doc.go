// Package subtitles parses and renders SRT subtitle text.
//
// Parsing is a degraded-but-never-fails contract: structurally valid input
// yields timestamped cues, anything else falls back to one cue per non-empty
// line. Render is the structural inverse, substituting translated text while
// preserving sequence numbers and timestamps exactly.
package subtitles
