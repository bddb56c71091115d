package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kobzevvv/vibe-sec/internal/config"
	"github.com/kobzevvv/vibe-sec/internal/gate"
	"github.com/kobzevvv/vibe-sec/internal/respond"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stdin closed")
}

func TestRunHook_FailsOpen(t *testing.T) {
	t.Setenv(config.EnvConfigDir, t.TempDir())
	t.Setenv(config.EnvDisable, "")
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvAPIKeyFallback, "")

	tests := []struct {
		name     string
		stdin    io.Reader
		wantWarn bool
	}{
		{"invalid json", strings.NewReader("{not json"), true},
		{"empty input", strings.NewReader(""), true},
		{"unreadable stdin", failingReader{}, true},
		{"unknown tool", strings.NewReader(`{"tool_name":"Glob","tool_input":{"command":"x"}}`), false},
		{"benign command", strings.NewReader(`{"tool_name":"Bash","tool_input":{"command":"ls -la"}}`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if signal := runHook(tt.stdin, &stderr); signal != respond.ExitAllow {
				t.Fatalf("signal = %d, want %d", signal, respond.ExitAllow)
			}
			if got := strings.Contains(stderr.String(), "[vibesec] warning:"); got != tt.wantWarn {
				t.Errorf("warning present = %v, want %v; stderr: %q", got, tt.wantWarn, stderr.String())
			}
		})
	}
}

func TestRunHook_DeniesThroughPipeline(t *testing.T) {
	t.Setenv(config.EnvConfigDir, t.TempDir())
	t.Setenv(config.EnvDisable, "")
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvAPIKeyFallback, "")

	var stderr bytes.Buffer
	payload := `{"tool_name":"Bash","tool_input":{"command":"rm -rf ~/"}}`
	if signal := runHook(strings.NewReader(payload), &stderr); signal != respond.ExitDeny {
		t.Fatalf("signal = %d, want %d", signal, respond.ExitDeny)
	}
	if !strings.Contains(stderr.String(), "BLOCKED") {
		t.Errorf("deny explanation missing from stderr: %q", stderr.String())
	}
}

func parseHookInput(t *testing.T, payload string) hookInput {
	t.Helper()
	var input hookInput
	if err := json.Unmarshal([]byte(payload), &input); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return input
}

func TestActionFromInput(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ok      bool
		kind    gate.ActionKind
		text    string
	}{
		{
			name:    "bash command",
			payload: `{"hook_event_name":"PreToolUse","tool_name":"Bash","tool_input":{"command":"ls -la"}}`,
			ok:      true,
			kind:    gate.KindShellExecute,
			text:    "ls -la",
		},
		{
			name:    "write tool",
			payload: `{"tool_name":"Write","tool_input":{"file_path":"/tmp/a.txt","content":"hello"}}`,
			ok:      true,
			kind:    gate.KindFileWrite,
			text:    "/tmp/a.txt\nhello",
		},
		{
			name:    "edit tool uses new_string",
			payload: `{"tool_name":"Edit","tool_input":{"file_path":"/tmp/a.txt","new_string":"patched"}}`,
			ok:      true,
			kind:    gate.KindFileEdit,
			text:    "/tmp/a.txt\npatched",
		},
		{
			name:    "unknown tool passes through",
			payload: `{"tool_name":"Glob","tool_input":{"command":"x"}}`,
			ok:      false,
		},
		{
			name:    "bash with empty command passes through",
			payload: `{"tool_name":"Bash","tool_input":{"command":""}}`,
			ok:      false,
		},
		{
			name:    "write with no path passes through",
			payload: `{"tool_name":"Write","tool_input":{"content":"x"}}`,
			ok:      false,
		},
		{
			name:    "empty payload passes through",
			payload: `{}`,
			ok:      false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, ok := actionFromInput(parseHookInput(t, tt.payload))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if action.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", action.Kind, tt.kind)
			}
			if action.Text() != tt.text {
				t.Errorf("text = %q, want %q", action.Text(), tt.text)
			}
			if action.Time.IsZero() {
				t.Error("action time not set")
			}
		})
	}
}
