// Package llm defines the model-completion boundary: the message and
// content-block types exchanged with the model, the Completer interface
// every provider backend implements, and the error taxonomy and retry
// policy applied around provider calls.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind is the discriminator tag for ContentBlock. The set is closed:
// code that walks blocks matches exhaustively and treats any other tag as a
// protocol error rather than dropping it.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolUse    ContentKind = "tool_use"
	ContentToolResult ContentKind = "tool_result"
)

// ToolUseData is a model-issued request to run a named tool. The ID is unique
// within one response and correlates the invocation with its result.
type ToolUseData struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResultData answers one tool invocation, identified by ToolUseID.
type ToolResultData struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// ContentBlock is a tagged union over the block kinds above.
type ContentBlock struct {
	Kind       ContentKind     `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolUse    *ToolUseData    `json:"tool_use,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
}

// TextBlock creates a text ContentBlock.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: ContentText, Text: text}
}

// ToolUseBlock creates a tool invocation ContentBlock.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{
		Kind:    ContentToolUse,
		ToolUse: &ToolUseData{ID: id, Name: name, Input: input},
	}
}

// ToolResultBlock creates a tool result ContentBlock.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{
		Kind:       ContentToolResult,
		ToolResult: &ToolResultData{ToolUseID: toolUseID, Content: content, IsError: isError},
	}
}

// Message is one entry in the sequence sent to the model.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextContent returns the concatenation of all text blocks.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if block.Kind == ContentText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// UserMessage creates a user Message with text content.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// AssistantMessage creates an assistant Message with text content.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{TextBlock(text)}}
}

// ToolResultsMessage packs a batch of tool results into a single user-role
// message. The collaborator protocol requires results to arrive as user
// content, one batch per model round.
func ToolResultsMessage(results []ToolResult) Message {
	blocks := make([]ContentBlock, len(results))
	for i, r := range results {
		blocks[i] = ToolResultBlock(r.ToolUseID, r.Content, r.IsError)
	}
	return Message{Role: RoleUser, Content: blocks}
}

// ToolSpec declares a callable tool: name, human-readable description, and a
// JSON-schema input description. Specs are defined at startup and shared
// read-only for the session lifetime; the schema is advisory metadata the
// model validates against upstream.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// RequiredFields returns the schema's required field names, if declared.
func (s ToolSpec) RequiredFields() []string {
	raw, ok := s.InputSchema["required"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		fields := make([]string, 0, len(v))
		for _, f := range v {
			if name, ok := f.(string); ok {
				fields = append(fields, name)
			}
		}
		return fields
	default:
		return nil
	}
}

// ToolCall is a tool invocation extracted from a model response.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult pairs a serialized payload with the invocation it answers.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// Usage tracks token consumption for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Request is the input to Completer.Complete: the fixed system prompt, the
// full ordered history, and the declared tool specs.
type Request struct {
	Model     string     `json:"model"`
	System    string     `json:"system,omitempty"`
	Messages  []Message  `json:"messages"`
	Tools     []ToolSpec `json:"tools,omitempty"`
	MaxTokens int        `json:"max_tokens,omitempty"`
}

// Response is one model completion: an ordered block sequence plus metadata.
type Response struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      Usage          `json:"usage"`
}

// Text returns the concatenated text of all text blocks in the response.
func (r *Response) Text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Kind == ContentText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// Partition splits the response blocks into text blocks and tool invocations,
// preserving order within each group. An unrecognized block kind is an error:
// new block types introduced by the API must fail loudly instead of being
// silently dropped.
func (r *Response) Partition() (texts []string, calls []ToolCall, err error) {
	for _, block := range r.Content {
		switch block.Kind {
		case ContentText:
			texts = append(texts, block.Text)
		case ContentToolUse:
			if block.ToolUse == nil {
				return nil, nil, &InvalidResponseError{APIError: APIError{
					Message: "tool_use block missing invocation data",
				}}
			}
			calls = append(calls, ToolCall{
				ID:    block.ToolUse.ID,
				Name:  block.ToolUse.Name,
				Input: block.ToolUse.Input,
			})
		case ContentToolResult:
			return nil, nil, &InvalidResponseError{APIError: APIError{
				Message: "tool_result block in a model response",
			}}
		default:
			return nil, nil, &InvalidResponseError{APIError: APIError{
				Message: fmt.Sprintf("unrecognized content block kind %q", block.Kind),
			}}
		}
	}
	return texts, calls, nil
}
