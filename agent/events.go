package agent

import "fmt"

// EventKind labels one entry in a turn's ordered event stream.
type EventKind string

const (
	// EventKeepAlive is emitted once, first, so the transport always has a
	// byte to deliver even when the turn fails immediately.
	EventKeepAlive EventKind = "keep_alive"

	// EventSearchStart marks entry into a retrieval hop.
	EventSearchStart EventKind = "search_start"

	// EventSearchDone marks the end of a retrieval hop.
	EventSearchDone EventKind = "search_done"

	// EventToken carries one increment of the model's answer text.
	EventToken EventKind = "token"

	// EventWarning carries a non-fatal problem, such as a failed state save.
	EventWarning EventKind = "warning"

	// EventSource names the video the answer was grounded in. At most one
	// per turn, always last.
	EventSource EventKind = "source"

	// EventError reports the failure that ended the turn. Nothing follows it.
	EventError EventKind = "error"
)

// Event is one entry in the stream. Text holds the token text, the warning
// or error message, or the source filename, depending on Kind.
type Event struct {
	Kind EventKind
	Text string
}

// In-band markers, byte for byte what stream consumers parse.
const (
	markerKeepAlive   = " "
	markerSearchStart = "\n\n> *🔍 Searching video transcripts...*\n\n"
	markerSearchDone  = "> *✅ Search complete. Analyzing...*\n\n"
	sourcePrefix      = "<<SOURCE:"
	sourceSuffix      = ">>"
)

// Render returns the exact bytes the event contributes to the plain-text
// response stream.
func (e Event) Render() string {
	switch e.Kind {
	case EventKeepAlive:
		return markerKeepAlive
	case EventSearchStart:
		return markerSearchStart
	case EventSearchDone:
		return markerSearchDone
	case EventWarning:
		return fmt.Sprintf("\n\n> *⚠️ %s*\n\n", e.Text)
	case EventSource:
		return sourcePrefix + e.Text + sourceSuffix
	case EventError:
		return "Error: " + e.Text
	default:
		return e.Text
	}
}
