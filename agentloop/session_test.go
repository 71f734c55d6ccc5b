package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/pkarlsen/agentsh/llm"
)

// sequenceAdapter returns scripted responses in order and records every
// request it receives.
type sequenceAdapter struct {
	responses []*llm.Response
	errs      []error
	requests  []llm.Request
}

func (a *sequenceAdapter) Name() string { return "scripted" }

func (a *sequenceAdapter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	a.requests = append(a.requests, req)
	i := len(a.requests) - 1
	if i < len(a.errs) && a.errs[i] != nil {
		return nil, a.errs[i]
	}
	if i < len(a.responses) {
		return a.responses[i], nil
	}
	return &llm.Response{Content: []llm.ContentBlock{llm.TextBlock("done")}}, nil
}

func textResponse(texts ...string) *llm.Response {
	blocks := make([]llm.ContentBlock, len(texts))
	for i, text := range texts {
		blocks[i] = llm.TextBlock(text)
	}
	return &llm.Response{ID: "msg_test", Content: blocks}
}

func toolResponse(id, name, input string) *llm.Response {
	return &llm.Response{ID: "msg_test", Content: []llm.ContentBlock{
		llm.TextBlock("working on it"),
		llm.ToolUseBlock(id, name, json.RawMessage(input)),
	}}
}

func newTestSession(t *testing.T, adapter llm.Completer, config *SessionConfig) *Session {
	t.Helper()
	if config == nil {
		config = &SessionConfig{}
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = "test system prompt"
	}
	if config.WorkingDir == "" {
		config.WorkingDir = t.TempDir()
	}
	client := llm.NewClient(adapter, llm.WithRetryPolicy(llm.RetryPolicy{}))

	registry := NewToolRegistry()
	registry.Register(echoSpec("echo"), echoHandler)

	session := NewSession(client, registry, config)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestChatSimpleExchange(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{textResponse("hi there")}}
	session := newTestSession(t, adapter, nil)

	answer, err := session.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "hi there" {
		t.Errorf("answer = %q", answer)
	}
	if len(adapter.requests) != 1 {
		t.Errorf("model called %d times, want 1", len(adapter.requests))
	}

	history := session.History()
	if len(history) != 2 || history[0].Kind != TurnUser || history[1].Kind != TurnAssistant {
		t.Errorf("history = %+v", history)
	}
}

func TestChatJoinsTextBlocks(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{textResponse("part one", "part two")}}
	session := newTestSession(t, adapter, nil)

	answer, err := session.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "part one\npart two" {
		t.Errorf("answer = %q", answer)
	}
}

func TestChatToolRound(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{
		toolResponse("tu_1", "echo", `{"text":"pong"}`),
		textResponse("all done"),
	}}
	session := newTestSession(t, adapter, nil)

	answer, err := session.Chat(context.Background(), "ping the echo tool")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "all done" {
		t.Errorf("answer = %q", answer)
	}

	// One tool round means exactly two model calls.
	if len(adapter.requests) != 2 {
		t.Fatalf("model called %d times, want 2", len(adapter.requests))
	}

	// The second request carries the full history including the results.
	second := adapter.requests[1]
	if len(second.Messages) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second.Messages))
	}
	resultMsg := second.Messages[2]
	if resultMsg.Role != llm.RoleUser {
		t.Errorf("results role = %q", resultMsg.Role)
	}
	block := resultMsg.Content[0]
	if block.ToolResult == nil || block.ToolResult.ToolUseID != "tu_1" {
		t.Errorf("result not paired with invocation: %+v", block)
	}
	if block.ToolResult.Content != "pong" {
		t.Errorf("result content = %q", block.ToolResult.Content)
	}

	history := session.History()
	wantKinds := []TurnKind{TurnUser, TurnAssistant, TurnToolResults, TurnAssistant}
	if len(history) != len(wantKinds) {
		t.Fatalf("history length = %d, want %d", len(history), len(wantKinds))
	}
	for i, kind := range wantKinds {
		if history[i].Kind != kind {
			t.Errorf("history[%d].Kind = %q, want %q", i, history[i].Kind, kind)
		}
	}
}

func TestChatBatchesParallelToolCalls(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{
		{ID: "msg_1", Content: []llm.ContentBlock{
			llm.ToolUseBlock("tu_1", "echo", json.RawMessage(`{"text":"a"}`)),
			llm.ToolUseBlock("tu_2", "echo", json.RawMessage(`{"text":"b"}`)),
		}},
		textResponse("done"),
	}}
	session := newTestSession(t, adapter, nil)

	if _, err := session.Chat(context.Background(), "run both"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	history := session.History()
	if history[2].Kind != TurnToolResults {
		t.Fatalf("history[2] = %q", history[2].Kind)
	}
	results := history[2].ToolResults.Results
	if len(results) != 2 {
		t.Fatalf("expected one batch of 2 results, got %d", len(results))
	}
	if results[0].ToolUseID != "tu_1" || results[1].ToolUseID != "tu_2" {
		t.Errorf("result order = %v", results)
	}
	if results[0].Content != "a" || results[1].Content != "b" {
		t.Errorf("result contents = %v", results)
	}
}

func TestChatUnknownToolContinuesLoop(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{
		toolResponse("tu_1", "bogus", `{}`),
		textResponse("recovered"),
	}}
	session := newTestSession(t, adapter, nil)

	answer, err := session.Chat(context.Background(), "try a bad tool")
	if err != nil {
		t.Fatalf("unknown tool must not abort the exchange: %v", err)
	}
	if answer != "recovered" {
		t.Errorf("answer = %q", answer)
	}

	history := session.History()
	result := history[2].ToolResults.Results[0]
	if !result.IsError {
		t.Error("unknown tool result should carry is_error")
	}
	if !strings.Contains(result.Content, "Unknown tool: bogus") {
		t.Errorf("result content = %q", result.Content)
	}
}

func TestChatAPIErrorAbortsExchange(t *testing.T) {
	adapter := &sequenceAdapter{
		errs: []error{&llm.AuthenticationError{ProviderError: llm.ProviderError{
			APIError: llm.APIError{Message: "invalid x-api-key"},
		}}},
		responses: []*llm.Response{nil, textResponse("back up")},
	}
	session := newTestSession(t, adapter, nil)

	_, err := session.Chat(context.Background(), "first try")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid x-api-key") {
		t.Errorf("error = %v", err)
	}

	// History keeps the user turn; the session stays usable.
	history := session.History()
	if len(history) != 1 || history[0].Kind != TurnUser {
		t.Errorf("history after failure = %+v", history)
	}

	answer, err := session.Chat(context.Background(), "second try")
	if err != nil {
		t.Fatalf("session should survive a failed exchange: %v", err)
	}
	if answer != "back up" {
		t.Errorf("answer = %q", answer)
	}
}

func TestChatToolFailureDoesNotAbort(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{
		toolResponse("tu_1", "echo", `not valid json`),
		textResponse("handled"),
	}}
	session := newTestSession(t, adapter, nil)

	answer, err := session.Chat(context.Background(), "send bad arguments")
	if err != nil {
		t.Fatalf("tool failure must not abort: %v", err)
	}
	if answer != "handled" {
		t.Errorf("answer = %q", answer)
	}
	result := session.History()[2].ToolResults.Results[0]
	if !result.IsError {
		t.Error("malformed arguments should produce an error payload")
	}
}

func TestChatMaxToolRounds(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{
		toolResponse("tu_1", "echo", `{"text":"1"}`),
		toolResponse("tu_2", "echo", `{"text":"2"}`),
		toolResponse("tu_3", "echo", `{"text":"3"}`),
	}}
	session := newTestSession(t, adapter, &SessionConfig{MaxToolRounds: 2})

	answer, err := session.Chat(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.Contains(answer, "Maximum tool rounds (2) exceeded") {
		t.Errorf("answer = %q", answer)
	}
	if len(adapter.requests) != 2 {
		t.Errorf("model called %d times, want 2", len(adapter.requests))
	}
	// The last executed round's results are still recorded.
	history := session.History()
	if last := history[len(history)-1]; last.Kind != TurnToolResults {
		t.Errorf("last turn = %q", last.Kind)
	}
}

func TestChatMalformedResponseAborts(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{
		{Content: []llm.ContentBlock{{Kind: llm.ContentKind("mystery")}}},
	}}
	session := newTestSession(t, adapter, nil)

	if _, err := session.Chat(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for unrecognized block kind")
	}
}

func TestChatSendsSystemPromptAndTools(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{textResponse("ok")}}
	session := newTestSession(t, adapter, &SessionConfig{SystemPrompt: "custom prompt"})

	if _, err := session.Chat(context.Background(), "hello"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	req := adapter.requests[0]
	if req.System != "custom prompt" {
		t.Errorf("system = %q", req.System)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "echo" {
		t.Errorf("tools = %v", req.Tools)
	}
	if req.Model != DefaultModel {
		t.Errorf("model = %q", req.Model)
	}
	if req.MaxTokens != DefaultMaxTokens {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
}

func TestChatHistoryGrowsAcrossExchanges(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{
		textResponse("first answer"),
		textResponse("second answer"),
	}}
	session := newTestSession(t, adapter, nil)

	if _, err := session.Chat(context.Background(), "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Chat(context.Background(), "two"); err != nil {
		t.Fatal(err)
	}

	// The second request replays the full prior exchange.
	if len(adapter.requests[1].Messages) != 3 {
		t.Errorf("second request has %d messages, want 3", len(adapter.requests[1].Messages))
	}
	if session.store.Len() != 4 {
		t.Errorf("history length = %d, want 4", session.store.Len())
	}
}

func TestSessionReset(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{textResponse("hi")}}
	session := newTestSession(t, adapter, nil)

	if _, err := session.Chat(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	session.Reset()
	if len(session.History()) != 0 {
		t.Error("history not cleared")
	}
}

func TestSessionEvents(t *testing.T) {
	adapter := &sequenceAdapter{responses: []*llm.Response{
		toolResponse("tu_1", "echo", `{"text":"x"}`),
		textResponse("final"),
	}}
	session := newTestSession(t, adapter, nil)

	if _, err := session.Chat(context.Background(), "go"); err != nil {
		t.Fatal(err)
	}
	session.Close()

	var kinds []EventKind
	for event := range session.Events() {
		kinds = append(kinds, event.Kind)
	}

	want := map[EventKind]bool{
		EventSessionStart:  false,
		EventUserInput:     false,
		EventToolCallStart: false,
		EventToolCallEnd:   false,
		EventAssistantText: false,
		EventSessionEnd:    false,
	}
	for _, kind := range kinds {
		if _, ok := want[kind]; ok {
			want[kind] = true
		}
	}
	for kind, seen := range want {
		if !seen {
			t.Errorf("missing event %q in %v", kind, kinds)
		}
	}
}

func TestSessionDefaults(t *testing.T) {
	adapter := &sequenceAdapter{}
	session := newTestSession(t, adapter, nil)
	if session.ID() == "" {
		t.Error("session has no ID")
	}
	if session.Model() != DefaultModel {
		t.Errorf("model = %q", session.Model())
	}
}

func TestChatErrorIsUnwrappable(t *testing.T) {
	rootErr := &llm.ServerError{ProviderError: llm.ProviderError{
		APIError: llm.APIError{Message: "overloaded"},
	}}
	adapter := &sequenceAdapter{errs: []error{rootErr}}
	session := newTestSession(t, adapter, nil)

	_, err := session.Chat(context.Background(), "hello")
	var serverErr *llm.ServerError
	if !errors.As(err, &serverErr) {
		t.Errorf("expected wrapped *llm.ServerError, got %v", err)
	}
}
