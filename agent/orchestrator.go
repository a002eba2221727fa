// Package agent runs the per-turn reason/retrieve loop: it binds transcript
// search to the chat model as its only tool, keeps conversation state
// durable between turns, and streams progress as ordered events.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"

	"github.com/framepoint/framepoint/conversation"
	"github.com/framepoint/framepoint/retrieval"
	"github.com/framepoint/framepoint/searchindex"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidRequest marks turns rejected before any streaming starts.
var ErrInvalidRequest = errors.New("agent: invalid request")

// Turn is one user query against a conversation thread.
type Turn struct {
	// Query is the user's question. Required.
	Query string

	// ThreadID identifies the conversation. It doubles as the user
	// isolation key for retrieval. Required.
	ThreadID string

	// VideoID is the video currently selected on the client, if any. The
	// scope router may keep it or switch away from it.
	VideoID string
}

// Model is the chat model seam. StreamChat sends the transcript and streams
// the reply's text through onToken as it arrives, returning the completed
// assistant message. withTool controls whether the retrieval tool is offered.
type Model interface {
	StreamChat(ctx context.Context, msgs []conversation.Message, withTool bool, onToken func(string) error) (conversation.Message, error)
}

// ScopeResolver decides which video a turn should search.
type ScopeResolver interface {
	Resolve(ctx context.Context, query, userID, current string) retrieval.Decision
}

// Retriever is the bound transcript-search capability.
type Retriever interface {
	Search(ctx context.Context, query string, filter searchindex.Filter, k int) ([]string, error)
}

// StateStore persists conversation state between turns. Load degrades to an
// empty state on its own; Setup and Save report failures so the turn can
// warn about them.
type StateStore interface {
	Setup(ctx context.Context) error
	Load(ctx context.Context, threadID string) conversation.State
	Save(ctx context.Context, threadID string, state conversation.State) error
}

// Options wires an Orchestrator.
type Options struct {
	Model     Model
	Router    ScopeResolver
	Retriever Retriever
	Store     StateStore

	// RetrievalK is how many segments each retrieval hop fetches (default 50).
	RetrievalK int

	// MaxHops bounds retrieval hops per turn. Once reached, the tool is
	// withheld so the model has to answer from what it has (default 4).
	MaxHops int
}

// Orchestrator runs conversation turns.
type Orchestrator struct {
	opts Options
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Model == nil {
		return nil, errors.New("New: opts.Model is nil")
	}
	if opts.Router == nil {
		return nil, errors.New("New: opts.Router is nil")
	}
	if opts.Retriever == nil {
		return nil, errors.New("New: opts.Retriever is nil")
	}
	if opts.Store == nil {
		return nil, errors.New("New: opts.Store is nil")
	}
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = 50
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = 4
	}
	return &Orchestrator{opts: opts}, nil
}

// StreamTurn validates the turn and starts it. The returned channel carries
// the turn's events in order and is always closed when the turn is over,
// whether it finished, failed, or was cancelled through ctx.
func (o *Orchestrator) StreamTurn(ctx context.Context, turn Turn) (<-chan Event, error) {
	if strings.TrimSpace(turn.ThreadID) == "" {
		return nil, fmt.Errorf("%w: thread_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(turn.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}

	events := make(chan Event)
	go o.run(ctx, turn, events)
	return events, nil
}

func (o *Orchestrator) run(ctx context.Context, turn Turn, events chan<- Event) {
	defer close(events)
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"thread_id": turn.ThreadID}).Errorf("turn panicked: %v", r)
			o.emit(ctx, events, Event{Kind: EventError, Text: fmt.Sprintf("internal failure: %v", r)})
		}
	}()

	if !o.emit(ctx, events, Event{Kind: EventKeepAlive}) {
		return
	}

	scope := o.opts.Router.Resolve(ctx, turn.Query, turn.ThreadID, turn.VideoID)

	if err := o.opts.Store.Setup(ctx); err != nil {
		log.WithFields(log.Fields{"thread_id": turn.ThreadID}).Warnf("checkpoint setup skipped: %v", err)
	}
	state := o.opts.Store.Load(ctx, turn.ThreadID)
	state.Append(conversation.UserMessage(turn.Query))

	turnErr := o.loop(ctx, turn, scope, &state, events)

	// Saved even after a failure so the user message survives the turn.
	if err := o.opts.Store.Save(ctx, turn.ThreadID, state); err != nil {
		log.WithFields(log.Fields{"thread_id": turn.ThreadID}).Warnf("checkpoint save failed: %v", err)
		if turnErr == nil {
			o.emit(ctx, events, Event{Kind: EventWarning, Text: "This exchange could not be saved to the conversation history."})
		}
	}

	if turnErr != nil {
		log.WithFields(log.Fields{"thread_id": turn.ThreadID}).Errorf("turn failed: %v", turnErr)
		o.emit(ctx, events, Event{Kind: EventError, Text: turnErr.Error()})
		return
	}

	if scope.TargetVideo != "" {
		o.emit(ctx, events, Event{Kind: EventSource, Text: scope.TargetVideo})
	}
}

func (o *Orchestrator) loop(ctx context.Context, turn Turn, scope retrieval.Decision, state *conversation.State, events chan<- Event) error {
	onToken := func(token string) error {
		if !o.emit(ctx, events, Event{Kind: EventToken, Text: token}) {
			return ctx.Err()
		}
		return nil
	}

	for hop := 0; ; hop++ {
		withTool := hop < o.opts.MaxHops

		msgs := append([]conversation.Message{conversation.SystemMessage(groundingPrompt)}, state.Messages...)
		reply, err := o.opts.Model.StreamChat(ctx, msgs, withTool, onToken)
		if err != nil {
			return fmt.Errorf("model call failed: %w", err)
		}
		if !withTool {
			// The tool was withheld; a stray call would dangle with no reply.
			reply.ToolCalls = nil
		}
		state.Append(reply)

		if len(reply.ToolCalls) == 0 {
			return nil
		}

		if !o.emit(ctx, events, Event{Kind: EventSearchStart}) {
			return ctx.Err()
		}
		if err := o.runToolCalls(ctx, turn, scope, reply.ToolCalls, state); err != nil {
			return err
		}
		if !o.emit(ctx, events, Event{Kind: EventSearchDone}) {
			return ctx.Err()
		}
	}
}

const retrieveFailedText = "The transcript search failed. No context is available for this request."

// runToolCalls answers every tool call in the reply, substituting a failure
// notice where retrieval broke so the transcript never carries an unanswered
// call. The first retrieval error still fails the turn.
func (o *Orchestrator) runToolCalls(ctx context.Context, turn Turn, scope retrieval.Decision, calls []conversation.ToolCall, state *conversation.State) error {
	var retrieveErr error
	for _, call := range calls {
		if retrieveErr != nil {
			state.Append(conversation.ToolMessage(retrieveFailedText, call.ID))
			continue
		}
		result, err := o.retrieve(ctx, turn, scope, call)
		if err != nil {
			retrieveErr = err
			state.Append(conversation.ToolMessage(retrieveFailedText, call.ID))
			continue
		}
		state.Append(conversation.ToolMessage(result, call.ID))
	}
	if retrieveErr != nil {
		return fmt.Errorf("retrieval failed: %w", retrieveErr)
	}
	return nil
}

// retrieve runs one bound search call. The model's query argument is
// preferred; when its arguments do not parse, the user's raw query is
// searched instead so a malformed call still retrieves something useful.
func (o *Orchestrator) retrieve(ctx context.Context, turn Turn, scope retrieval.Decision, call conversation.ToolCall) (string, error) {
	query := turn.Query
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		log.WithFields(log.Fields{"thread_id": turn.ThreadID, "tool_call": call.ID}).
			Warn("unusable tool arguments, searching the raw user query")
	} else {
		query = args.Query
	}

	filter := searchindex.Filter{UserID: turn.ThreadID, Filename: scope.TargetVideo}
	lines, err := o.opts.Retriever.Search(ctx, query, filter, o.opts.RetrievalK)
	if err != nil {
		return "", err
	}
	// No hits is an empty context document, not an error; the grounding
	// directive tells the model how to answer from nothing.
	return strings.Join(lines, "\n\n"), nil
}

// emit delivers an event unless ctx is done, which is how a disconnected
// caller stops the turn promptly.
func (o *Orchestrator) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
