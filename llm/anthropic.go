package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter implements Completer against the Anthropic Messages API.
type AnthropicAdapter struct {
	client *anthropic.Client
}

// NewAnthropicAdapter creates an adapter authenticated with the given key.
func NewAnthropicAdapter(apiKey string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{APIError: APIError{
			Message: "anthropic: API key is required",
		}}
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAdapter{client: &client}, nil
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Complete sends a blocking request and returns the full response.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  convertMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapAnthropicError(err)
	}

	blocks, err := convertResponseContent(resp.Content)
	if err != nil {
		return nil, err
	}

	return &Response{
		ID:         resp.ID,
		Model:      string(resp.Model),
		Content:    blocks,
		StopReason: string(resp.StopReason),
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// convertMessages translates the boundary messages into Anthropic params.
// Tool results travel as user messages with tool_result blocks; assistant
// tool invocations are replayed verbatim so the API accepts the history.
func convertMessages(messages []Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		var blocks []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch block.Kind {
			case ContentText:
				// The API rejects empty text blocks.
				if block.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(block.Text))
				}
			case ContentToolUse:
				if block.ToolUse != nil {
					var input any
					_ = json.Unmarshal(block.ToolUse.Input, &input)
					blocks = append(blocks, anthropic.NewToolUseBlock(block.ToolUse.ID, input, block.ToolUse.Name))
				}
			case ContentToolResult:
				if block.ToolResult != nil {
					blocks = append(blocks, anthropic.NewToolResultBlock(
						block.ToolResult.ToolUseID, block.ToolResult.Content, block.ToolResult.IsError))
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		// The API requires strict role alternation; fold consecutive
		// same-role messages into one.
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = append(result[n-1].Content, blocks...)
			continue
		}
		result = append(result, anthropic.MessageParam{Role: role, Content: blocks})
	}

	return result
}

func convertTools(tools []ToolSpec) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.InputSchema["properties"],
				Required:   t.RequiredFields(),
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// convertResponseContent maps API blocks onto the closed ContentBlock set.
// A block type outside the set is an InvalidResponseError: new API block
// kinds must fail loudly rather than vanish from the transcript.
func convertResponseContent(content []anthropic.ContentBlockUnion) ([]ContentBlock, error) {
	var blocks []ContentBlock
	for _, block := range content {
		switch block.Type {
		case "text":
			blocks = append(blocks, TextBlock(block.Text))
		case "tool_use":
			blocks = append(blocks, ToolUseBlock(block.ID, block.Name, json.RawMessage(block.Input)))
		default:
			return nil, &InvalidResponseError{APIError: APIError{
				Message: "anthropic: unrecognized content block type " + strconv.Quote(block.Type),
			}}
		}
	}
	return blocks, nil
}

// wrapAnthropicError translates SDK errors into the boundary taxonomy.
func wrapAnthropicError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return &RequestTimeoutError{APIError: APIError{Message: "anthropic: request timed out", Cause: err}}
		}
		return &NetworkError{APIError: APIError{Message: "anthropic: request failed", Cause: err}}
	}

	var retryAfter *float64
	if delay := parseRetryAfter(apiErr.Response); delay > 0 {
		seconds := delay.Seconds()
		retryAfter = &seconds
	}

	return ErrorFromStatusCode(apiErr.StatusCode, err.Error(), "anthropic", retryAfter)
}

// parseRetryAfter extracts the Retry-After duration from an HTTP response.
// Returns 0 if the header is absent or unparseable.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}
