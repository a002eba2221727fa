// Package conversation holds the durable state of a chat thread: the message
// transcript, the codec that serializes it, and the Postgres-backed
// checkpoint store it is persisted through.
package conversation

// Message roles. Tool messages carry the ToolCallID of the call they answer.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation requested by the assistant. Arguments is the
// raw JSON argument object exactly as the model produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one transcript entry.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// State is the full transcript of a thread. Turns only ever append to it;
// earlier messages are never rewritten.
type State struct {
	Messages []Message `json:"messages"`
}

// EmptyState returns a state with zero messages. It is the universal fallback
// for missing or undecodable checkpoints.
func EmptyState() State {
	return State{Messages: []Message{}}
}

// Append adds messages to the end of the transcript.
func (s *State) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolMessage is the result of executing a tool call, linked back to the
// requesting call by id.
func ToolMessage(content, toolCallID string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
