// Package gate implements the decision pipeline that sits between an
// autonomous coding agent and the operating system. Every proposed shell
// command or file write is evaluated against a fixed-order set of tiers;
// the first matching tier that is not suppressed by the allowlist produces
// a deny, otherwise the action is allowed.
package gate

import (
	"time"
)

// ActionKind is the closed set of action types the gate evaluates.
type ActionKind string

const (
	KindShellExecute ActionKind = "shell-execute"
	KindFileWrite    ActionKind = "file-write"
	KindFileEdit     ActionKind = "file-edit"
)

// Action is the unit of evaluation, constructed fresh per invocation from
// the host agent's hook payload. Never persisted.
type Action struct {
	Kind     ActionKind
	Command  string // shell-execute
	FilePath string // file-write / file-edit
	Content  string // new file content or replacement text
	Time     time.Time

	// lazily parsed shell structure; one invocation evaluates one action
	// on one goroutine, so no locking is needed.
	parsedCache *Parsed
}

// parsed tokenizes the shell command once and caches the result so every
// catalog predicate shares a single parser pass.
func (a *Action) parsed() *Parsed {
	if a.parsedCache == nil {
		a.parsedCache = parseShell(a.Command)
	}
	return a.parsedCache
}

// Text returns the action's textual form, used for allowlist matching,
// the blocked log, and suggestion synthesis.
func (a *Action) Text() string {
	switch a.Kind {
	case KindShellExecute:
		return a.Command
	case KindFileWrite, KindFileEdit:
		if a.Content == "" {
			return a.FilePath
		}
		return a.FilePath + "\n" + a.Content
	}
	return ""
}

// Tier is an ordered severity class. Tiers are evaluated strictly in
// declaration order; each tier is either bypassable via the allowlist or
// irrevocable.
type Tier int

const (
	TierIrrevocable Tier = iota
	TierHeuristic
	TierEscalation
)

func (t Tier) String() string {
	switch t {
	case TierIrrevocable:
		return "irrevocable"
	case TierHeuristic:
		return "heuristic"
	case TierEscalation:
		return "escalation"
	}
	return "unknown"
}

// Bypassable reports whether allowlist entries may suppress a match at
// this tier. The irrevocable tier never consults the allowlist.
func (t Tier) Bypassable() bool {
	switch t {
	case TierIrrevocable:
		return false
	case TierHeuristic, TierEscalation:
		return true
	}
	return false
}

// Rule is a single detection rule: a predicate over an Action plus the
// human-readable metadata reported on a match. Rules are immutable and
// live in the package-level catalog tables.
type Rule struct {
	ID          string
	Category    string
	Reason      string
	Explanation string
	Match       func(*Action) bool
}

// Decision is the engine's output: exactly one per Action, never partial.
type Decision struct {
	Allow bool

	// Populated only when Allow is false.
	Tier             Tier
	RuleID           string
	Category         string
	Reason           string
	Explanation      string
	SuggestedPattern string // bypassable tiers only
}

// AllowDecision is the single allow value; all allows are identical.
func AllowDecision() Decision {
	return Decision{Allow: true}
}

func denyDecision(tier Tier, r Rule, suggested string) Decision {
	return Decision{
		Tier:             tier,
		RuleID:           r.ID,
		Category:         r.Category,
		Reason:           r.Reason,
		Explanation:      r.Explanation,
		SuggestedPattern: suggested,
	}
}
