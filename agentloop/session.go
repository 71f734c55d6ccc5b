package agentloop

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pkarlsen/agentsh/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-7-sonnet-20250219"

// DefaultMaxTokens caps the model's output per completion.
const DefaultMaxTokens = 4096

// SessionConfig holds configuration for a session.
type SessionConfig struct {
	Model string `json:"model"`

	// MaxTokens caps model output per completion. 0 means DefaultMaxTokens.
	MaxTokens int `json:"max_tokens"`

	// MaxToolRounds bounds tool rounds per user input. 0 means unlimited.
	MaxToolRounds int `json:"max_tool_rounds"`

	// WorkingDir feeds the environment block of the system prompt. Empty
	// resolves to the process working directory.
	WorkingDir string `json:"working_dir,omitempty"`

	// SystemPrompt overrides the built-in prompt when non-empty.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// EventBufferSize sizes the event channel. 0 means the default.
	EventBufferSize int `json:"event_buffer_size,omitempty"`
}

// DefaultSessionConfig returns the default configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:         DefaultModel,
		MaxTokens:     DefaultMaxTokens,
		MaxToolRounds: 0,
	}
}

// Session orchestrates the agent loop: it relays user input to the model,
// executes requested tools, feeds results back, and repeats until the model
// answers without tool calls. One exchange runs at a time; Chat serializes
// concurrent callers.
type Session struct {
	id       string
	client   *llm.Client
	registry *ToolRegistry
	store    *ConversationStore
	emitter  *EventEmitter
	config   SessionConfig
	system   string
	mu       sync.Mutex
}

// NewSession creates a session around the given model client and tool
// registry. A nil config uses defaults.
func NewSession(client *llm.Client, registry *ToolRegistry, config *SessionConfig) *Session {
	cfg := DefaultSessionConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir, _ = os.Getwd()
	}

	system := cfg.SystemPrompt
	if system == "" {
		system = BuildSystemPrompt(cfg.WorkingDir, cfg.Model)
	}

	id := uuid.New().String()
	s := &Session{
		id:       id,
		client:   client,
		registry: registry,
		store:    NewConversationStore(),
		emitter:  NewEventEmitter(id, cfg.EventBufferSize),
		config:   cfg,
		system:   system,
	}
	s.emitter.Emit(EventSessionStart, map[string]interface{}{
		"model":       cfg.Model,
		"working_dir": cfg.WorkingDir,
	})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Model returns the configured model name.
func (s *Session) Model() string {
	return s.config.Model
}

// Events returns the session event stream.
func (s *Session) Events() <-chan SessionEvent {
	return s.emitter.Events()
}

// History returns a copy of the conversation history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Turns()
}

// Reset discards the conversation history. Tool registrations and
// configuration are unaffected.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Reset()
}

// Close ends the session and closes the event stream.
func (s *Session) Close() error {
	s.emitter.Emit(EventSessionEnd, nil)
	s.emitter.Close()
	return s.client.Close()
}

// Chat runs one full exchange: the user message is appended to history, the
// model is called, any requested tools are executed and their results fed
// back, and the loop repeats until the model responds without tool calls.
// The final response text is returned.
//
// A model-call failure aborts the exchange and returns an error; history up
// to that point is preserved and the session remains usable. Tool failures
// never abort the exchange; they are reported to the model as payloads.
func (s *Session) Chat(ctx context.Context, userMessage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Append(NewUserTurn(userMessage))
	s.emitter.Emit(EventUserInput, map[string]interface{}{
		"content": userMessage,
	})

	rounds := 0
	for {
		if s.config.MaxToolRounds > 0 && rounds >= s.config.MaxToolRounds {
			s.emitter.Emit(EventRoundLimit, map[string]interface{}{
				"rounds": rounds,
			})
			return fmt.Sprintf("Maximum tool rounds (%d) exceeded; stopping this exchange.", s.config.MaxToolRounds), nil
		}

		s.emitter.Emit(EventModelCall, map[string]interface{}{
			"round": rounds,
		})
		resp, err := s.client.Complete(ctx, llm.Request{
			Model:     s.config.Model,
			System:    s.system,
			Messages:  s.store.Messages(),
			Tools:     s.registry.Specs(),
			MaxTokens: s.config.MaxTokens,
		})
		if err != nil {
			s.emitter.Emit(EventError, map[string]interface{}{
				"error": err.Error(),
			})
			return "", fmt.Errorf("model call failed: %w", err)
		}

		s.store.Append(NewAssistantTurn(resp.Content, resp.Usage, resp.ID))

		texts, calls, err := resp.Partition()
		if err != nil {
			s.emitter.Emit(EventError, map[string]interface{}{
				"error": err.Error(),
			})
			return "", fmt.Errorf("malformed model response: %w", err)
		}

		text := strings.Join(texts, "\n")
		if len(calls) == 0 {
			return text, nil
		}

		// Intermediate commentary accompanying tool calls.
		if text != "" {
			s.emitter.Emit(EventAssistantText, map[string]interface{}{
				"text": text,
			})
		}

		results := make([]llm.ToolResult, 0, len(calls))
		for _, call := range calls {
			s.emitter.Emit(EventToolCallStart, map[string]interface{}{
				"tool": call.Name,
				"id":   call.ID,
			})
			payload, isErr := s.registry.Dispatch(ctx, call.Name, call.Input)
			results = append(results, llm.ToolResult{
				ToolUseID: call.ID,
				Content:   payload,
				IsError:   isErr,
			})
			s.emitter.Emit(EventToolCallEnd, map[string]interface{}{
				"tool":     call.Name,
				"id":       call.ID,
				"is_error": isErr,
			})
		}
		s.store.Append(NewToolResultsTurn(results))
		rounds++
	}
}
