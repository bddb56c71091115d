// Package audit appends structured records of every block to two local
// append-only files: the blocked log, which retains the full action text
// for later human review, and the telemetry queue, which by construction
// carries only coarse classification fields and never the subject text.
// Each record is one self-contained JSONL line written in a single call,
// so a crash between the two appends cannot corrupt either file.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kobzevvv/vibe-sec/internal/gate"
)

// BlockedEntry is the locally retained record of a deny, read back by the
// allow-last workflow and the reporting subsystem. Append-only contract.
type BlockedEntry struct {
	EventID          string `json:"event_id"`
	Timestamp        string `json:"timestamp"`
	CatalogVersion   string `json:"catalog_version"`
	Tier             string `json:"tier"`
	RuleID           string `json:"rule_id"`
	Reason           string `json:"reason"`
	Subject          string `json:"subject"`
	SuggestedPattern string `json:"suggested_pattern,omitempty"`
}

// TelemetryEvent is the redacted outbound record. No field may ever carry
// the raw action text or a matched secret value.
type TelemetryEvent struct {
	Timestamp    string `json:"timestamp"`
	Tier         string `json:"tier"`
	Category     string `json:"category"`
	ActionKind   string `json:"action_kind"`
	LengthBucket string `json:"length_bucket"`
	Interpreter  string `json:"interpreter"`
}

// Sink owns the two append-only files.
type Sink struct {
	blockedPath   string
	telemetryPath string
	mu            sync.Mutex
}

func NewSink(blockedPath, telemetryPath string) *Sink {
	return &Sink{blockedPath: blockedPath, telemetryPath: telemetryPath}
}

// RecordBlocked appends the full-text record of a deny.
func (s *Sink) RecordBlocked(action *gate.Action, d gate.Decision) error {
	entry := BlockedEntry{
		EventID:          uuid.NewString(),
		Timestamp:        action.Time.UTC().Format(time.RFC3339),
		CatalogVersion:   gate.CatalogVersion,
		Tier:             d.Tier.String(),
		RuleID:           d.RuleID,
		Reason:           d.Reason,
		Subject:          action.Text(),
		SuggestedPattern: d.SuggestedPattern,
	}
	return s.appendLine(s.blockedPath, entry)
}

// RecordTelemetry appends the coarse, category-only event.
func (s *Sink) RecordTelemetry(action *gate.Action, d gate.Decision) error {
	event := TelemetryEvent{
		Timestamp:    action.Time.UTC().Format(time.RFC3339),
		Tier:         d.Tier.String(),
		Category:     d.Category,
		ActionKind:   string(action.Kind),
		LengthBucket: lengthBucket(len(action.Text())),
		Interpreter:  interpreterGuess(action),
	}
	return s.appendLine(s.telemetryPath, event)
}

func (s *Sink) appendLine(path string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.Write(data)
	return err
}

// ReadBlocked loads the blocked log, skipping malformed lines, for the
// log viewer and the allow-last replay.
func ReadBlocked(path string) ([]BlockedEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []BlockedEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry BlockedEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

func lengthBucket(n int) string {
	switch {
	case n <= 50:
		return "short"
	case n <= 200:
		return "medium"
	default:
		return "long"
	}
}

// knownInterpreters is a heuristic classification aid for telemetry
// bucketing, not a security boundary. Names may drift from the host
// ecosystem's actual process names.
var knownInterpreters = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "fish": true, "dash": true,
	"python": true, "python3": true, "node": true, "ruby": true,
	"perl": true, "curl": true, "wget": true, "git": true, "npm": true,
	"pip": true, "pip3": true, "go": true, "make": true, "docker": true,
}

func interpreterGuess(action *gate.Action) string {
	if action.Kind != gate.KindShellExecute {
		return "none"
	}
	fields := strings.Fields(action.Command)
	if len(fields) == 0 {
		return "none"
	}
	name := filepath.Base(fields[0])
	if knownInterpreters[name] {
		return name
	}
	return "other"
}
