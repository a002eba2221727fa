// Package transcribe turns uploaded videos into timed transcript segments:
// audio extraction through ffmpeg, speech-to-text through the OpenAI audio
// API, and merging of the raw segments into retrieval-sized windows.
package transcribe

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/framepoint/framepoint/fileutil"
)

// Segment is one timed span of transcribed speech. Times are seconds from
// the start of the video.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// DefaultWindowChars is the merge target for indexable windows. Whisper
// segments follow pauses and run a sentence or two; windows near this size
// carry enough context to answer from while staying precise to cite.
const DefaultWindowChars = 800

// MergeSegments coalesces raw segments into windows of roughly targetChars
// characters. Segments are never split: a window grows by whole segments
// until adding the next one would cross the budget, so a single oversized
// segment still becomes its own window. Each window spans from its first
// segment's start to its last segment's end. Blank segments are dropped.
func MergeSegments(segments []Segment, targetChars int) []Segment {
	if targetChars <= 0 {
		targetChars = DefaultWindowChars
	}

	merged := make([]Segment, 0, len(segments))
	var window Segment
	open := false
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if !open {
			window = Segment{Start: seg.Start, End: seg.End, Text: text}
			open = true
			continue
		}
		if len(window.Text)+1+len(text) > targetChars {
			merged = append(merged, window)
			window = Segment{Start: seg.Start, End: seg.End, Text: text}
			continue
		}
		window.Text += " " + text
		window.End = seg.End
	}
	if open {
		merged = append(merged, window)
	}
	return merged
}

// TranscriptPath is where a video's transcript artifact lives, next to the
// video itself.
func TranscriptPath(videoPath string) string {
	return videoPath + ".transcript.json"
}

// WriteTranscript stores merged segments beside the video so the index can
// be rebuilt without paying for transcription again.
func WriteTranscript(path string, segments []Segment) error {
	return fileutil.WriteJSONFileAtomic(path, segments, true)
}

// ReadTranscript loads a transcript artifact.
func ReadTranscript(path string) ([]Segment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var segments []Segment
	if err := json.Unmarshal(b, &segments); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return segments, nil
}
