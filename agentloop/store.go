package agentloop

import (
	"time"

	"github.com/pkarlsen/agentsh/llm"
)

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnUser        TurnKind = "user"
	TurnAssistant   TurnKind = "assistant"
	TurnToolResults TurnKind = "tool_results"
)

// Turn is a single entry in the conversation history. Turns are immutable
// once appended.
type Turn struct {
	Kind        TurnKind         `json:"kind"`
	Timestamp   time.Time        `json:"timestamp"`
	User        *UserTurn        `json:"user,omitempty"`
	Assistant   *AssistantTurn   `json:"assistant,omitempty"`
	ToolResults *ToolResultsTurn `json:"tool_results,omitempty"`
}

// UserTurn holds user input.
type UserTurn struct {
	Content string `json:"content"`
}

// AssistantTurn holds the model's response blocks verbatim.
type AssistantTurn struct {
	Content    []llm.ContentBlock `json:"content"`
	Usage      llm.Usage          `json:"usage"`
	ResponseID string             `json:"response_id,omitempty"`
}

// ToolResultsTurn holds one batch of tool execution results. All results for
// a model round travel in a single turn.
type ToolResultsTurn struct {
	Results []llm.ToolResult `json:"results"`
}

// NewUserTurn creates a Turn wrapping user input.
func NewUserTurn(content string) Turn {
	return Turn{
		Kind:      TurnUser,
		Timestamp: time.Now(),
		User:      &UserTurn{Content: content},
	}
}

// NewAssistantTurn creates a Turn wrapping an assistant response.
func NewAssistantTurn(content []llm.ContentBlock, usage llm.Usage, responseID string) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantTurn{
			Content:    content,
			Usage:      usage,
			ResponseID: responseID,
		},
	}
}

// NewToolResultsTurn creates a Turn wrapping a batch of tool results.
func NewToolResultsTurn(results []llm.ToolResult) Turn {
	return Turn{
		Kind:        TurnToolResults,
		Timestamp:   time.Now(),
		ToolResults: &ToolResultsTurn{Results: results},
	}
}

// ConversationStore is the append-only ordered log of turns. Insertion order
// is the only meaningful order; turns are never reordered, deduplicated, or
// removed. The store is created empty at session start and lives until the
// session ends or is explicitly reset.
type ConversationStore struct {
	turns []Turn
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{turns: make([]Turn, 0)}
}

// Append adds a turn to the end of the log.
func (s *ConversationStore) Append(turn Turn) {
	s.turns = append(s.turns, turn)
}

// Len returns the number of turns.
func (s *ConversationStore) Len() int {
	return len(s.turns)
}

// Turns returns a copy of the full history.
func (s *ConversationStore) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Last returns the most recent turn, or a zero Turn if the store is empty.
func (s *ConversationStore) Last() (Turn, bool) {
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// Reset empties the store.
func (s *ConversationStore) Reset() {
	s.turns = s.turns[:0]
}

// Messages converts the full history into the message sequence sent to the
// model on every round. Tool-result batches become a single user-role message
// of tool_result blocks, per the collaborator protocol.
func (s *ConversationStore) Messages() []llm.Message {
	var messages []llm.Message
	for _, turn := range s.turns {
		switch turn.Kind {
		case TurnUser:
			if turn.User != nil {
				messages = append(messages, llm.UserMessage(turn.User.Content))
			}
		case TurnAssistant:
			if turn.Assistant != nil {
				messages = append(messages, llm.Message{
					Role:    llm.RoleAssistant,
					Content: turn.Assistant.Content,
				})
			}
		case TurnToolResults:
			if turn.ToolResults != nil {
				messages = append(messages, llm.ToolResultsMessage(turn.ToolResults.Results))
			}
		}
	}
	return messages
}
