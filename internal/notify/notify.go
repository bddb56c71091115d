// Package notify sends a best-effort desktop notification when an action
// is blocked. Failures are irrelevant to the decision and are swallowed by
// the caller; the notifier process is started and never waited on.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"
)

// Send fires a desktop notification and returns immediately.
func Send(title, body string) error {
	title = sanitize(title)
	body = sanitize(body)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		cmd = exec.Command("notify-send", "--urgency=critical", title, body)
	default:
		return fmt.Errorf("no notifier for %s", runtime.GOOS)
	}

	// Fire and forget: never block the exit signal on the notifier.
	return cmd.Start()
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 200 {
		cut := 200
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
