package searchindex

import "github.com/qdrant/go-client/qdrant"

// Payload field names. Search filters match on these, so they are part of
// the collection's on-disk contract.
const (
	payloadText      = "text"
	payloadFilename  = "filename"
	payloadVideoID   = "video_id"
	payloadUserID    = "user_id"
	payloadTitle     = "title"
	payloadAuthor    = "author"
	payloadStartTime = "start_time"
	payloadEndTime   = "end_time"
)

func segmentPayload(seg Segment) map[string]any {
	return map[string]any{
		payloadText:      seg.Text,
		payloadFilename:  seg.Filename,
		payloadVideoID:   seg.VideoID,
		payloadUserID:    seg.UserID,
		payloadTitle:     seg.Title,
		payloadAuthor:    seg.Author,
		payloadStartTime: seg.StartTime,
		payloadEndTime:   seg.EndTime,
	}
}

// payloadSegment tolerates missing fields; points written by older ingest
// versions simply come back with zero values.
func payloadSegment(payload map[string]*qdrant.Value) Segment {
	return Segment{
		Text:      payload[payloadText].GetStringValue(),
		Filename:  payload[payloadFilename].GetStringValue(),
		VideoID:   payload[payloadVideoID].GetStringValue(),
		UserID:    payload[payloadUserID].GetStringValue(),
		Title:     payload[payloadTitle].GetStringValue(),
		Author:    payload[payloadAuthor].GetStringValue(),
		StartTime: payload[payloadStartTime].GetDoubleValue(),
		EndTime:   payload[payloadEndTime].GetDoubleValue(),
	}
}

func filterConditions(filter Filter) *qdrant.Filter {
	must := []*qdrant.Condition{qdrant.NewMatch(payloadUserID, filter.UserID)}
	if filter.Filename != "" {
		must = append(must, qdrant.NewMatch(payloadFilename, filter.Filename))
	}
	return &qdrant.Filter{Must: must}
}
