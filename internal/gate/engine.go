package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/kobzevvv/vibe-sec/internal/allowlist"
)

// Confidence qualifies a remote semantic verdict.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Verdict is the remote judgment service's answer for a borderline action.
type Verdict struct {
	Block      bool
	Confidence Confidence
	Reason     string
	Detail     string
}

// Judge is the semantic escalation client seen from the engine. Any error
// is treated as unavailable, which is treated as allow: the remote
// dependency is optional and must never block routine work.
type Judge interface {
	Classify(ctx context.Context, actionText string) (Verdict, error)
}

// Engine evaluates actions against the catalog in fixed tier order.
// The first matching tier that survives allowlist consultation wins.
type Engine struct {
	allow             *allowlist.Store
	judge             Judge // nil when no capability key is configured
	killSwitch        bool
	escalationTimeout time.Duration
}

// Options configures an Engine.
type Options struct {
	Allowlist         *allowlist.Store
	Judge             Judge
	KillSwitch        bool
	EscalationTimeout time.Duration
}

func NewEngine(opts Options) *Engine {
	if opts.EscalationTimeout <= 0 {
		opts.EscalationTimeout = 5 * time.Second
	}
	return &Engine{
		allow:             opts.Allowlist,
		judge:             opts.Judge,
		killSwitch:        opts.KillSwitch,
		escalationTimeout: opts.EscalationTimeout,
	}
}

// Evaluate resolves an action to exactly one Decision. Tier order is
// fixed and never depends on action content; within a tier, catalog order
// only decides which rule id is reported.
func (e *Engine) Evaluate(ctx context.Context, action *Action) Decision {
	// Emergency recovery: the kill switch bypasses everything, including
	// the irrevocable tier.
	if e.killSwitch {
		return AllowDecision()
	}

	switch action.Kind {
	case KindShellExecute:
		return e.evaluateShell(ctx, action)
	case KindFileWrite, KindFileEdit:
		return e.evaluateWrite(action)
	}
	return AllowDecision()
}

func (e *Engine) evaluateShell(ctx context.Context, action *Action) Decision {
	// Tier 1: irrevocable. No allowlist consultation, ever.
	for _, rule := range irrevocableRules {
		if rule.Match(action) {
			return denyDecision(TierIrrevocable, rule, "")
		}
	}

	text := action.Text()

	// Tier 2: heuristic, compositional. Either signal alone is routine
	// development work; only the combination denies.
	readSig, readHit := matchSignals(sensitiveReadSignals, text)
	exfilSig, exfilHit := matchSignals(exfiltrationSignals, text)
	if readHit && exfilHit && !e.suppressed(text) {
		rule := Rule{
			ID:       readSig.ID + "+" + exfilSig.ID,
			Category: exfilSig.Category,
			Reason:   fmt.Sprintf("Sensitive read (%s) combined with network egress (%s)", readSig.ID, exfilSig.ID),
			Explanation: "Reading credential material and sending data over the network in " +
				"one action is the signature of injected exfiltration instructions. If this " +
				"is intentional, add the suggested allowlist pattern.",
		}
		return denyDecision(TierHeuristic, rule, allowlist.Suggest(text))
	}

	// Tier 3: escalation. Gated on the borderline set so benign commands
	// never pay the remote round trip, and a no-op without a key.
	if e.judge == nil {
		return AllowDecision()
	}
	borderSig, borderHit := matchSignals(borderlineSignals, text)
	if !borderHit || e.suppressed(text) {
		return AllowDecision()
	}

	callCtx, cancel := context.WithTimeout(ctx, e.escalationTimeout)
	defer cancel()
	verdict, err := e.judge.Classify(callCtx, text)
	if err != nil {
		// Unavailable is allow.
		return AllowDecision()
	}
	if verdict.Block && verdict.Confidence == ConfidenceHigh {
		rule := Rule{
			ID:          "semantic-judgment",
			Category:    borderSig.Category,
			Reason:      verdict.Reason,
			Explanation: verdict.Detail,
		}
		if rule.Reason == "" {
			rule.Reason = "Remote semantic judgment classified this action as hostile"
		}
		return denyDecision(TierEscalation, rule, allowlist.Suggest(text))
	}
	return AllowDecision()
}

// evaluateWrite is the separate two-rule path for file writes and edits.
func (e *Engine) evaluateWrite(action *Action) Decision {
	if isProtectedWriteTarget(action.FilePath) {
		rule := Rule{
			ID:       "protected-write-target",
			Category: "protected-path",
			Reason:   fmt.Sprintf("Writes to %s are never permitted", action.FilePath),
			Explanation: "This file controls authentication or system identity " +
				"(SSH authorized keys, passwd/shadow/hosts/sudoers, system shell " +
				"profiles). There is no development workflow that needs an agent to " +
				"modify it.",
		}
		return denyDecision(TierIrrevocable, rule, "")
	}

	if isStartupFile(action.FilePath) {
		if s, hit := matchSignals(startupContentSignals, action.Content); hit {
			text := action.Text()
			if e.suppressed(text) {
				return AllowDecision()
			}
			rule := Rule{
				ID:       "startup-file-" + s.ID,
				Category: s.Category,
				Reason:   fmt.Sprintf("Shell startup file write contains a network or encoding primitive (%s)", s.ID),
				Explanation: "Legitimate edits to login-shell startup files rarely inject " +
					"network calls or encoded payloads; injected persistence does.",
			}
			return denyDecision(TierHeuristic, rule, allowlist.Suggest(text))
		}
	}

	return AllowDecision()
}

func (e *Engine) suppressed(text string) bool {
	return e.allow != nil && e.allow.Matches(text)
}
