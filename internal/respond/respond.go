// Package respond turns a Decision into its user-visible output, audit
// side effects, and the exit signal consumed by the host agent's hook
// protocol. All side effects are best-effort: only the exit signal
// carries the safety property.
package respond

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kobzevvv/vibe-sec/internal/gate"
)

// ExitSignal is the process exit code contract with the host agent:
// 0 allows the action, 2 denies it.
type ExitSignal int

const (
	ExitAllow ExitSignal = 0
	ExitDeny  ExitSignal = 2
)

const subjectCap = 200

// Effects is the single seam for every side effect a deny triggers. Each
// effect is independently fallible; the responder swallows all of them.
type Effects interface {
	Notify(title, body string) error
	RecordBlocked(action *gate.Action, d gate.Decision) error
	RecordTelemetry(action *gate.Action, d gate.Decision) error
}

// Responder renders decisions. Out is where the explanation goes (the
// host agent reads it from stderr).
type Responder struct {
	Out     io.Writer
	Effects Effects
}

// Respond fires the deny side effects and returns the exit signal. An
// allow produces no output and no side effects.
func (r *Responder) Respond(action *gate.Action, d gate.Decision) ExitSignal {
	if d.Allow {
		return ExitAllow
	}

	if r.Effects != nil {
		// Failures here never alter the exit signal.
		_ = r.Effects.Notify("vibe-sec blocked an action", d.Reason)
		_ = r.Effects.RecordBlocked(action, d)
		_ = r.Effects.RecordTelemetry(action, d)
	}

	fmt.Fprint(r.Out, Explanation(action, d))
	return ExitDeny
}

// Explanation renders the structured deny message: reason, rationale, the
// capped subject text, and for bypassable tiers the exact remediation
// command the host agent should offer to run.
func Explanation(action *gate.Action, d gate.Decision) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "BLOCKED by vibe-sec [tier: %s, rule: %s]\n", d.Tier, d.RuleID)
	fmt.Fprintf(&sb, "Reason: %s\n", d.Reason)
	if d.Explanation != "" {
		fmt.Fprintf(&sb, "%s\n", d.Explanation)
	}

	subject := action.Text()
	if len(subject) > subjectCap {
		subject = truncateRunes(subject, subjectCap) + "…"
	}
	fmt.Fprintf(&sb, "Action: %s\n", subject)

	switch d.Tier {
	case gate.TierIrrevocable:
		sb.WriteString("This detection cannot be bypassed.\n")
	case gate.TierHeuristic, gate.TierEscalation:
		if d.SuggestedPattern != "" {
			fmt.Fprintf(&sb, "If this is intentional, trust it with:\n  vibesec allowlist add '%s'\n", d.SuggestedPattern)
		}
	}

	return sb.String()
}

// truncateRunes shortens s to at most n bytes without splitting a
// multi-byte rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
