package agentloop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkarlsen/agentsh/llm"
)

// BashToolName is the tool the model invokes to run shell commands.
const BashToolName = "execute_bash"

// BashToolSpec describes the execute_bash tool. Both fields are required:
// the command to run and a short description of what it is for.
func BashToolSpec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        BashToolName,
		Description: "Execute a bash command on the local machine. Returns stdout, stderr, and exit code. Use this to run any command including git, rg, gh, curl, etc. The command runs in the current working directory.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The bash command to execute. Can be a single command or a pipeline.",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "A brief description of what this command does (for logging purposes).",
				},
			},
			"required": []string{"command", "description"},
		},
	}
}

// RegisterBashTool wires execute_bash into the registry, backed by the given
// executor. The handler serializes the execution outcome as an indented JSON
// object; command failures and timeouts are ordinary payloads, not handler
// errors.
func RegisterBashTool(registry *ToolRegistry, executor *CommandExecutor) {
	registry.Register(BashToolSpec(), func(ctx context.Context, args json.RawMessage) (string, error) {
		parsed, err := ParseToolArguments(args)
		if err != nil {
			return "", err
		}

		command := GetStringArg(parsed, "command", "")
		if command == "" {
			return "", fmt.Errorf("command must be a non-empty string")
		}
		description := GetStringArg(parsed, "description", "")

		outcome := executor.Execute(ctx, command, description)
		outcome.Stdout = TruncateOutput(outcome.Stdout, DefaultMaxOutputChars, TruncateHeadTail)
		outcome.Stderr = TruncateOutput(outcome.Stderr, DefaultMaxOutputChars, TruncateHeadTail)

		payload, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serializing outcome: %w", err)
		}
		return string(payload), nil
	})
}
