package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/framepoint/framepoint/searchindex"
)

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{59.9, "00:59"},
		{60, "01:00"},
		{125.4, "02:05"},
		{3599, "59:59"},
		{3665, "61:05"},
		{-1, "00:00"},
		{math.NaN(), "00:00"},
		{math.Inf(1), "00:00"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatTimestamp(tc.seconds), "seconds=%v", tc.seconds)
	}
}

func TestFormatSegment(t *testing.T) {
	t.Parallel()

	seg := searchindex.Segment{
		Text:      "we shipped the beta on Friday",
		Title:     "retro.mp4",
		Author:    "Priya",
		StartTime: 125.4,
	}
	assert.Equal(t,
		"Video: 'retro.mp4' | Speaker: Priya | Timestamp [02:05]: we shipped the beta on Friday",
		FormatSegment(seg))
}

func TestFormatSegmentDefaultsUnknownMetadata(t *testing.T) {
	t.Parallel()

	got := FormatSegment(searchindex.Segment{Text: "hello"})
	assert.Equal(t,
		"Video: 'Unknown Video' | Speaker: Unknown Speaker | Timestamp [00:00]: hello",
		got)
}
