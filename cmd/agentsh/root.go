package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pkarlsen/agentsh/agentloop"
	"github.com/pkarlsen/agentsh/config"
	"github.com/pkarlsen/agentsh/llm"
)

type rootOptions struct {
	configPath string
	envFile    string
	model      string
	timeout    int
	maxRounds  int
	maxTokens  int
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "agentsh",
		Short: "Interactive agent shell backed by the Anthropic API",
		Long: `agentsh is an interactive CLI agent. It relays your requests to a
language model, executes the shell commands the model asks for, feeds the
results back, and repeats until the model produces a final answer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to YAML config file")
	flags.StringVar(&opts.envFile, "env-file", "", "path to dotenv file (default ./.env)")
	flags.StringVar(&opts.model, "model", "", "model name (overrides config)")
	flags.IntVar(&opts.timeout, "timeout", 0, "command timeout in seconds (overrides config)")
	flags.IntVar(&opts.maxRounds, "max-rounds", -1, "max tool rounds per request, 0 for unlimited (overrides config)")
	flags.IntVar(&opts.maxTokens, "max-tokens", 0, "max model output tokens (overrides config)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func runAgent(cmd *cobra.Command, opts *rootOptions) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.timeout > 0 {
		cfg.CommandTimeoutSeconds = opts.timeout
	}
	if opts.maxRounds >= 0 {
		cfg.MaxToolRounds = opts.maxRounds
	}
	if opts.maxTokens > 0 {
		cfg.MaxTokens = opts.maxTokens
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	adapter, err := llm.NewAnthropicAdapter(cfg.APIKey)
	if err != nil {
		return err
	}

	workingDir, _ := os.Getwd()
	executor := agentloop.NewCommandExecutor(workingDir,
		agentloop.WithTimeout(cfg.CommandTimeout()),
		agentloop.WithStatusWriter(cmd.ErrOrStderr()))
	registry := agentloop.NewToolRegistry()
	agentloop.RegisterBashTool(registry, executor)

	session := agentloop.NewSession(llm.NewClient(adapter), registry, &agentloop.SessionConfig{
		Model:         cfg.Model,
		MaxTokens:     cfg.MaxTokens,
		MaxToolRounds: cfg.MaxToolRounds,
		WorkingDir:    workingDir,
	})
	defer session.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	go printEvents(out, session.Events())

	isTTY := stdinIsTerminal()
	printBanner(out, workingDir, cfg.Model)

	reader := NewRequestReader(ctx, cmd.InOrStdin())
	for {
		if isTTY {
			fmt.Fprintln(out, "\n>>> Your request (end with empty line):")
		}

		request, outcome := reader.ReadRequest()
		switch outcome {
		case ReadEOF:
			printFarewell(out, "Session ended. Goodbye!")
			return nil
		case ReadInterrupted:
			printFarewell(out, "Session interrupted. Goodbye!")
			return nil
		}

		answer, err := session.Chat(ctx, request)
		if err != nil {
			if ctx.Err() != nil {
				printFarewell(out, "Session interrupted. Goodbye!")
				return nil
			}
			// The session survives a failed exchange; report and keep going.
			fmt.Fprintf(out, "\nAPI Error: %v\n", err)
			slog.Debug("exchange failed", "error", err)
			continue
		}
		if answer != "" {
			fmt.Fprintf(out, "\nClaude: %s\n", answer)
		}
	}
}

// printEvents renders intermediate loop events. Final answers are printed by
// the request loop; command progress is printed by the executor.
func printEvents(out io.Writer, events <-chan agentloop.SessionEvent) {
	for event := range events {
		switch event.Kind {
		case agentloop.EventAssistantText:
			if text, ok := event.Data["text"].(string); ok && text != "" {
				fmt.Fprintf(out, "\nClaude: %s\n", text)
			}
		case agentloop.EventRoundLimit:
			fmt.Fprintf(out, "\n[round limit reached]\n")
		default:
			slog.Debug("session event", "kind", event.Kind, "data", event.Data)
		}
	}
}

func printBanner(out io.Writer, workingDir, model string) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "agentsh - Agent Mode")
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "Enter your requests (empty line + Ctrl-D to exit)")
	fmt.Fprintf(out, "Working directory: %s\n", workingDir)
	fmt.Fprintf(out, "Model: %s\n", model)
	fmt.Fprintln(out, rule)
}

func printFarewell(out io.Writer, message string) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(out, "\n\n%s\n%s\n%s\n", rule, message, rule)
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
