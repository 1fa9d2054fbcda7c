package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// versionProbeTimeout bounds the version subprocess so a wedged binary cannot
// stall status displays.
const versionProbeTimeout = 3 * time.Second

// BinaryVersion reports the first line of `command -version` output for
// status displays. Returns an empty string when the binary is missing,
// unresponsive, or prints nothing.
func BinaryVersion(ctx context.Context, command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	if _, err := exec.LookPath(command); err != nil {
		return ""
	}

	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, command, "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line)
}
