package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kobzevvv/vibe-sec/internal/allowlist"
	"github.com/kobzevvv/vibe-sec/internal/audit"
	"github.com/kobzevvv/vibe-sec/internal/config"
	"github.com/kobzevvv/vibe-sec/internal/escalate"
	"github.com/kobzevvv/vibe-sec/internal/gate"
	"github.com/kobzevvv/vibe-sec/internal/notify"
	"github.com/kobzevvv/vibe-sec/internal/respond"
)

// hookInput is the PreToolUse JSON payload the host agent writes to stdin:
// {"hook_event_name": "PreToolUse", "tool_name": "Bash", "tool_input": {"command": "..."}}
// Write sends {"file_path": ..., "content": ...}; Edit sends {"file_path": ..., "new_string": ...}.
type hookInput struct {
	HookEventName string    `json:"hook_event_name"`
	ToolName      string    `json:"tool_name"`
	ToolInput     toolInput `json:"tool_input"`
}

type toolInput struct {
	Command   string `json:"command"`
	FilePath  string `json:"file_path"`
	Content   string `json:"content"`
	NewString string `json:"new_string"`
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Hook handler: read one action from stdin, exit 0 (allow) or 2 (deny)",
	Long: `Reads one PreToolUse JSON payload from stdin, evaluates the proposed
action against the rule tiers, and exits 0 to allow or 2 to deny. On a deny
the explanation is written to stderr for the host agent to surface.

Malformed input, unknown tools, and internal errors all fail open: the gate
must never become a denial-of-service vector for the host agent.`,
	RunE: hookCommand,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func hookCommand(cmd *cobra.Command, args []string) error {
	if signal := runHook(os.Stdin, os.Stderr); signal != respond.ExitAllow {
		os.Exit(int(signal))
	}
	return nil
}

// runHook reads one payload from stdin, evaluates it, and returns the
// exit signal. Every failure before a decision resolves to allow.
func runHook(stdin io.Reader, stderr io.Writer) respond.ExitSignal {
	data, err := io.ReadAll(stdin)
	if err != nil {
		warn(stderr, "could not read stdin: %v", err)
		return respond.ExitAllow
	}

	var input hookInput
	if err := json.Unmarshal(data, &input); err != nil {
		warn(stderr, "could not parse hook input: %v", err)
		return respond.ExitAllow
	}

	action, ok := actionFromInput(input)
	if !ok {
		// Unsupported tools and empty payloads pass through.
		return respond.ExitAllow
	}

	cfg, err := config.Load(allowlistPath, blockedPath, telemetryPath)
	if err != nil {
		warn(stderr, "config load failed: %v", err)
		return respond.ExitAllow
	}

	decision := evaluate(cfg, action, stderr)

	responder := &respond.Responder{
		Out: stderr,
		Effects: &sinkEffects{
			sink: audit.NewSink(cfg.BlockedPath, cfg.TelemetryPath),
		},
	}
	return responder.Respond(action, decision)
}

// evaluate assembles the engine for one invocation and runs it.
func evaluate(cfg *config.Config, action *gate.Action, stderr io.Writer) gate.Decision {
	store, err := allowlist.Load(cfg.AllowlistPath)
	if err != nil {
		// A broken allowlist disables suppression, not the gate.
		warn(stderr, "allowlist load failed: %v", err)
		store = nil
	}

	var judge gate.Judge
	if cfg.APIKey != "" {
		judge = escalate.NewClient(cfg.APIKey, cfg.Escalation)
	}

	engine := gate.NewEngine(gate.Options{
		Allowlist:         store,
		Judge:             judge,
		KillSwitch:        cfg.Disabled,
		EscalationTimeout: cfg.Escalation.Timeout,
	})
	return engine.Evaluate(context.Background(), action)
}

func actionFromInput(input hookInput) (*gate.Action, bool) {
	now := time.Now()
	switch input.ToolName {
	case "Bash":
		if input.ToolInput.Command == "" {
			return nil, false
		}
		return &gate.Action{
			Kind:    gate.KindShellExecute,
			Command: input.ToolInput.Command,
			Time:    now,
		}, true
	case "Write":
		if input.ToolInput.FilePath == "" {
			return nil, false
		}
		return &gate.Action{
			Kind:     gate.KindFileWrite,
			FilePath: input.ToolInput.FilePath,
			Content:  input.ToolInput.Content,
			Time:     now,
		}, true
	case "Edit":
		if input.ToolInput.FilePath == "" {
			return nil, false
		}
		return &gate.Action{
			Kind:     gate.KindFileEdit,
			FilePath: input.ToolInput.FilePath,
			Content:  input.ToolInput.NewString,
			Time:     now,
		}, true
	}
	return nil, false
}

// sinkEffects is the concrete Effects wiring: desktop notification plus
// the two append-only files.
type sinkEffects struct {
	sink *audit.Sink
}

func (e *sinkEffects) Notify(title, body string) error {
	return notify.Send(title, body)
}

func (e *sinkEffects) RecordBlocked(action *gate.Action, d gate.Decision) error {
	return e.sink.RecordBlocked(action, d)
}

func (e *sinkEffects) RecordTelemetry(action *gate.Action, d gate.Decision) error {
	return e.sink.RecordTelemetry(action, d)
}

func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "[vibesec] warning: "+format+"\n", args...)
}
