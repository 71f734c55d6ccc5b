// Package agentloop implements an interactive agent loop that pairs a large
// language model with local shell execution.
//
// A Session relays user input to the model, executes the shell commands the
// model requests through a sandboxed-by-timeout CommandExecutor, feeds the
// results back, and repeats until the model produces a final answer.
//
// # Architecture
//
//   - Session: the central orchestrator holding conversation state,
//     dispatching tool calls, and emitting events.
//   - ConversationStore: the append-only ordered log of turns.
//   - ToolRegistry: registration and dispatch of tool handlers.
//   - CommandExecutor: timeout-bounded shell execution with process-group
//     cleanup.
//   - EventEmitter: typed event stream for host application integration.
//
// # Quick Start
//
//	adapter, err := llm.NewAnthropicAdapter(os.Getenv("ANTHROPIC_API_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry := agentloop.NewToolRegistry()
//	agentloop.RegisterBashTool(registry, agentloop.NewCommandExecutor(""))
//
//	session := agentloop.NewSession(llm.NewClient(adapter), registry, nil)
//	defer session.Close()
//
//	answer, err := session.Chat(ctx, "List the files in this directory")
package agentloop
