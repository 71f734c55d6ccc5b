package agentloop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const baseSystemPrompt = `You are a helpful coding assistant with access to bash commands.

You can execute commands on the user's local machine to help with coding tasks.
When given a task, you should:
1. Create a plan
2. Execute necessary commands to accomplish the task
3. Iterate based on results (e.g., fix tests if they fail)
4. Provide clear feedback about what you're doing

You have access to tools like: bash, git, rg (ripgrep), gh (GitHub CLI), curl, and any other standard Unix utilities.

Always explain what you're doing and why. Be concise but thorough.

IMPORTANT SECURITY NOTE: You are executing commands on the user's machine. Be careful and:
- Avoid destructive operations without explaining them first
- Don't execute commands that could harm the system
- Be cautious with rm, chmod, and other potentially dangerous commands
- Always validate paths and inputs when possible`

// BuildSystemPrompt assembles the fixed system prompt for a session: the
// base instructions plus a structured environment block describing where
// commands will run.
func BuildSystemPrompt(workingDir, model string) string {
	return baseSystemPrompt + "\n\n" + BuildEnvironmentContext(workingDir, model)
}

// BuildEnvironmentContext generates the environment context block appended
// to the system prompt.
func BuildEnvironmentContext(workingDir, model string) string {
	isGitRepo := isGitRepository(workingDir)

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workingDir)
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGitRepo)
	if isGitRepo {
		if branch := gitBranch(workingDir); branch != "" {
			fmt.Fprintf(&sb, "Git branch: %s\n", branch)
		}
	}
	fmt.Fprintf(&sb, "Platform: %s\n", runtime.GOOS)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

func isGitRepository(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

func gitBranch(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
