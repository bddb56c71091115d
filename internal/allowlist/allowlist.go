// Package allowlist manages the user-maintained trust patterns that
// suppress detections at bypassable tiers. The backing store is a plain
// text file, one regular expression per non-blank, non-comment line, read
// by external tooling as a stable contract.
package allowlist

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Store is a file-backed pattern list. Concurrent writers are not
// coordinated: invocations are sequential in practice and last-writer-wins
// on the append path is the accepted tradeoff.
type Store struct {
	path     string
	patterns []*regexp.Regexp
	raw      []string
}

// Load reads the allowlist file. A missing or empty file yields an empty
// store. A malformed pattern is skipped individually; one bad line must
// never disable the rest of the allowlist.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			continue
		}
		s.patterns = append(s.patterns, re)
		s.raw = append(s.raw, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Matches reports whether any stored pattern matches the action's textual
// form. Consulted only for bypassable tiers; the engine never calls this
// for the irrevocable tier.
func (s *Store) Matches(text string) bool {
	for _, re := range s.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Patterns returns the raw pattern lines currently loaded.
func (s *Store) Patterns() []string {
	out := make([]string, len(s.raw))
	copy(out, s.raw)
	return out
}

// Append validates and persists a new pattern. Patterns that fail to
// compile are rejected; exact-text duplicates are a no-op.
func (s *Store) Append(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return fmt.Errorf("empty pattern")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	for _, existing := range s.raw {
		if existing == pattern {
			return nil
		}
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(pattern + "\n"); err != nil {
		return err
	}

	s.patterns = append(s.patterns, re)
	s.raw = append(s.raw, pattern)
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if err := os.WriteFile(s.path, nil, 0600); err != nil {
		return err
	}
	s.patterns = nil
	s.raw = nil
	return nil
}
