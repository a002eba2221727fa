// Package retrieval turns index hits into citable context lines and decides
// which video a conversation turn should search.
package retrieval

import (
	"fmt"
	"math"

	"github.com/framepoint/framepoint/searchindex"
)

// FormatTimestamp renders seconds as zero-padded mm:ss. There is no hours
// field; long videos keep counting minutes (3665 -> "61:05") so the stamp
// always matches a player's elapsed-time display. Values that cannot be a
// timestamp (negative, NaN, Inf) render as "00:00".
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatSegment renders one hit as a single context line carrying everything
// the model needs to cite it: title, speaker, and start timestamp.
func FormatSegment(seg searchindex.Segment) string {
	title := seg.Title
	if title == "" {
		title = "Unknown Video"
	}
	author := seg.Author
	if author == "" {
		author = "Unknown Speaker"
	}
	return fmt.Sprintf("Video: '%s' | Speaker: %s | Timestamp [%s]: %s",
		title, author, FormatTimestamp(seg.StartTime), seg.Text)
}
