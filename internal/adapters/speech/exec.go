package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecSynthesizer speaks through an external text-to-speech command such as
// espeak or say. The text is passed as the final argument.
type ExecSynthesizer struct {
	path string
	args []string
}

// NewExecSynthesizer parses command ("espeak -s 150") and resolves the binary.
func NewExecSynthesizer(command string) (*ExecSynthesizer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("speech backend %q: %w", fields[0], err)
	}
	return &ExecSynthesizer{path: path, args: fields[1:]}, nil
}

// Speak runs the command and waits for it. Cancelling ctx kills the process.
func (e *ExecSynthesizer) Speak(ctx context.Context, text string) error {
	args := append(append([]string(nil), e.args...), text)
	cmd := exec.CommandContext(ctx, e.path, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", e.path, err, strings.TrimSpace(string(out)))
	}
	return nil
}
