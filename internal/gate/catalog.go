package gate

import (
	"path/filepath"
	"regexp"
	"strings"
)

// CatalogVersion is recorded on every blocked-log record so external
// tooling can correlate a block with the rule set that produced it.
const CatalogVersion = "2026.3"

// signal is one entry of a signal set: a compiled pattern over the
// action's textual form. Signals never deny on their own; the heuristic
// tier requires one sensitive-read and one exfiltration signal on the same
// action, and the borderline set only gates escalation.
type signal struct {
	ID       string
	Category string
	re       *regexp.Regexp
}

func sig(id, category, pattern string) signal {
	return signal{ID: id, Category: category, re: regexp.MustCompile(pattern)}
}

func matchSignals(set []signal, text string) (signal, bool) {
	for _, s := range set {
		if s.re.MatchString(text) {
			return s, true
		}
	}
	return signal{}, false
}

// --- Tier 1: irrevocable rules -------------------------------------------
//
// These must be specific enough to avoid catastrophic false positives:
// every predicate works on tokenized arguments, not substrings, so
// "rm -rf ~/Downloads/tmp" passes while "rm -rf ~/" does not.

var systemDirs = map[string]bool{
	"/etc": true, "/usr": true, "/var": true, "/boot": true,
	"/bin": true, "/sbin": true, "/lib": true, "/lib64": true,
	"/dev": true, "/proc": true, "/sys": true, "/opt": true,
}

var shellInterpreters = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true,
	"ksh": true, "fish": true,
}

var downloaders = map[string]bool{
	"curl": true, "wget": true, "fetch": true,
}

var irrevocableRules = []Rule{
	{
		ID:       "rm-home-or-root",
		Category: "fs-destruction",
		Reason:   "Recursive delete targeting the home directory or filesystem root",
		Explanation: "A recursive rm aimed at ~ or / destroys the entire user environment " +
			"or system. No legitimate development task needs this; it is a signature of " +
			"injected instructions.",
		Match: func(a *Action) bool {
			for _, seg := range a.parsed().Segments() {
				if seg.Executable != "rm" {
					continue
				}
				if !hasFlag(seg.Tokens, 'r', "recursive") && !hasFlag(seg.Tokens, 'R', "recursive") {
					continue
				}
				for _, arg := range positionalArgs(seg.Tokens) {
					if denotesHome(arg) || denotesRoot(arg) {
						return true
					}
				}
			}
			return false
		},
	},
	{
		ID:       "rm-system-dir",
		Category: "fs-destruction",
		Reason:   "Recursive delete targeting a system directory",
		Explanation: "Recursive removal of a top-level system directory (/etc, /usr, ...) " +
			"bricks the machine. Deletes inside project trees are unaffected.",
		Match: func(a *Action) bool {
			for _, seg := range a.parsed().Segments() {
				if seg.Executable != "rm" {
					continue
				}
				if !hasFlag(seg.Tokens, 'r', "recursive") && !hasFlag(seg.Tokens, 'R', "recursive") {
					continue
				}
				for _, arg := range positionalArgs(seg.Tokens) {
					if systemDirs[filepath.Clean(arg)] {
						return true
					}
				}
			}
			return false
		},
	},
	{
		ID:       "pipe-to-shell",
		Category: "remote-execution",
		Reason:   "Piping downloaded content straight into a shell interpreter",
		Explanation: "curl|bash executes arbitrary remote content with no review step. " +
			"Download the script to a file and inspect it first.",
		Match: func(a *Action) bool {
			for _, pipeline := range a.parsed().Pipelines {
				sawDownloader := false
				for _, seg := range pipeline {
					if downloaders[seg.Executable] {
						sawDownloader = true
						continue
					}
					if sawDownloader && shellInterpreters[seg.Executable] {
						return true
					}
				}
			}
			return false
		},
	},
	{
		ID:       "disk-destroy",
		Category: "disk-ops",
		Reason:   "Direct destructive operation on a block device",
		Explanation: "mkfs, wipefs, and dd writing to /dev devices erase disks or " +
			"filesystem signatures irreversibly.",
		Match: func(a *Action) bool {
			for _, seg := range a.parsed().Segments() {
				if strings.HasPrefix(seg.Executable, "mkfs") || seg.Executable == "wipefs" {
					return true
				}
				if seg.Executable == "dd" {
					for _, tok := range seg.Tokens {
						if strings.HasPrefix(tok, "of=/dev/") {
							return true
						}
					}
				}
			}
			return false
		},
	},
	{
		ID:       "fork-bomb",
		Category: "resource-exhaustion",
		Reason:   "Shell fork bomb",
		Explanation: "The :(){ :|:& };: pattern recursively spawns processes until the " +
			"machine is unusable.",
		Match: func(a *Action) bool {
			compact := strings.ReplaceAll(a.Command, " ", "")
			return strings.Contains(compact, ":(){:|:&};:")
		},
	},
	{
		ID:       "chmod-root",
		Category: "fs-destruction",
		Reason:   "Recursive permission change at the filesystem root",
		Explanation: "chmod -R on / rewrites permissions for the whole system and is " +
			"effectively unrecoverable without a reinstall.",
		Match: func(a *Action) bool {
			for _, seg := range a.parsed().Segments() {
				if seg.Executable != "chmod" && seg.Executable != "chown" {
					continue
				}
				if !hasFlag(seg.Tokens, 'R', "recursive") {
					continue
				}
				for _, arg := range positionalArgs(seg.Tokens) {
					if denotesRoot(arg) {
						return true
					}
				}
			}
			return false
		},
	},
}

// --- Tier 2: heuristic signal sets ---------------------------------------
//
// A deny requires BOTH a sensitive-read and an exfiltration signal on the
// same action. Reading a .env locally or curling an API alone is routine
// development work and must stay allowed.

var sensitiveReadSignals = []signal{
	sig("ssh-private-key", "credential-read", `\.ssh/(id_[A-Za-z0-9_]+|[^\s'"]*\.pem)\b`),
	sig("env-file", "credential-read", `(^|[\s/;&|])\.env(\.[A-Za-z0-9_.-]+)?\b`),
	sig("cloud-credentials", "credential-read", `\.aws/credentials|\.config/gcloud/|\.kube/config|\.netrc\b|\.npmrc\b|\.pypirc\b`),
	sig("gpg-keyring", "credential-read", `\.gnupg/`),
	sig("keychain-dump", "credential-read", `security\s+(find-generic-password|find-internet-password|dump-keychain)`),
	sig("shell-history", "credential-read", `\.(bash|zsh)_history\b`),
	sig("secret-file", "credential-read", `(^|[\s/])(secrets?|credentials?)\.(json|ya?ml|toml|txt)\b`),
}

var exfiltrationSignals = []signal{
	sig("http-upload", "network-egress", `\bcurl\b[^|]*(\s-(d|F|T)\b|--data(-\w+)?\b|--form\b|--upload-file\b|-X\s*(POST|PUT)\b)`),
	sig("wget-post", "network-egress", `\bwget\b.*--post-(data|file)\b`),
	sig("netcat", "network-egress", `\b(nc|ncat|netcat)\b\s+\S+\s+\d{1,5}\b`),
	sig("dev-tcp", "network-egress", `/dev/(tcp|udp)/`),
	sig("scp-remote", "network-egress", `\b(scp|rsync)\b.*\s\S+@\S+:`),
	sig("pipe-to-uploader", "network-egress", `\|\s*(curl|wget|nc|ncat)\b`),
}

// --- Tier 3: borderline signals ------------------------------------------
//
// Weaker, higher-recall patterns. They never deny; they only decide
// whether the remote semantic judgment is worth the round trip.

var borderlineSignals = []signal{
	sig("history-credential-grep", "credential-hunt", `\bhistory\b.*\b(pass(word)?|secret|token|credential|api[_-]?key)`),
	sig("recursive-credential-grep", "credential-hunt", `\bgrep\b.*-r.*\b(password|passwd|secret|api[_-]?key|private[_-]?key)\b`),
	sig("env-scrape", "credential-hunt", `\b(env|printenv)\b\s*\|`),
	sig("encode-pipe", "obfuscation", `\|\s*base64\b|\bbase64\b[^|]*\|`),
	sig("keychain-list", "credential-hunt", `security\s+list-keychains`),
}

// --- File-write rules -----------------------------------------------------

// protectedWriteSuffixes are always denied on write regardless of content.
// System host/password files, sudoers, SSH authorized keys, and the
// system-wide shell profiles. This path has no allowlist bypass.
var protectedWriteSuffixes = []string{
	"/.ssh/authorized_keys",
	"/.ssh/authorized_keys2",
	"/etc/passwd",
	"/etc/shadow",
	"/etc/hosts",
	"/etc/sudoers",
	"/etc/profile",
	"/etc/bash.bashrc",
	"/etc/zshenv",
	"/etc/zprofile",
	"/etc/zshrc",
}

func isProtectedWriteTarget(path string) bool {
	cleaned := filepath.Clean(path)
	for _, suffix := range protectedWriteSuffixes {
		if strings.HasSuffix(cleaned, suffix) {
			return true
		}
	}
	return strings.HasPrefix(cleaned, "/etc/sudoers.d/")
}

// startupFileNames are the per-user shell startup files covered by the
// content heuristic: a write is denied only when the new content carries
// network or encoding primitives, so editing aliases stays allowed.
var startupFileNames = map[string]bool{
	".bashrc":       true,
	".bash_profile": true,
	".bash_login":   true,
	".profile":      true,
	".zshrc":        true,
	".zprofile":     true,
	".zshenv":       true,
	".zlogin":       true,
}

func isStartupFile(path string) bool {
	if startupFileNames[filepath.Base(path)] {
		return true
	}
	return strings.HasSuffix(filepath.ToSlash(path), "fish/config.fish")
}

var startupContentSignals = []signal{
	sig("startup-downloader", "persistence", `\b(curl|wget)\b`),
	sig("startup-netcat", "persistence", `\b(nc|ncat|netcat)\b|/dev/(tcp|udp)/`),
	sig("startup-encoding", "persistence", `\bbase64\b|\bxxd\b`),
	sig("startup-eval-subshell", "persistence", `eval\s*["']?\$\(`),
	sig("startup-inline-interpreter", "persistence", `\b(python3?|perl|ruby|node)\s+-[ce]\b`),
}
