package agentloop

import "fmt"

// TruncationMode selects where truncated content is cut.
type TruncationMode string

const (
	// TruncateTail keeps the beginning and drops the end.
	TruncateTail TruncationMode = "tail"
	// TruncateHeadTail keeps both ends and drops the middle.
	TruncateHeadTail TruncationMode = "head_tail"
)

// DefaultMaxOutputChars caps command output relayed to the model. The limit
// is generous; it exists to keep a runaway command from flooding the
// transcript, not to trim ordinary output.
const DefaultMaxOutputChars = 30000

// TruncateOutput caps output at maxChars, marking the elision with a line
// noting how many characters were dropped. maxChars <= 0 disables the cap.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	dropped := len(output) - maxChars
	switch mode {
	case TruncateHeadTail:
		head := maxChars / 2
		tail := maxChars - head
		return output[:head] +
			fmt.Sprintf("\n... [%d characters truncated] ...\n", dropped) +
			output[len(output)-tail:]
	default:
		return output[:maxChars] + fmt.Sprintf("\n... [%d characters truncated]", dropped)
	}
}
