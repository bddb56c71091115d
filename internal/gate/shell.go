package gate

import (
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Segment is one simple command inside a parsed shell line: the executable
// (base name, wrapper commands like sudo stripped) and its argument tokens.
type Segment struct {
	Executable string
	Tokens     []string
}

// Parsed is the pipeline-structured view of a shell command. Each pipeline
// is the list of segments joined by | or |&; statements joined by &&, ||,
// or ; become separate pipelines.
type Parsed struct {
	Pipelines [][]Segment
}

// Segments flattens all pipelines into one slice, in source order.
func (p *Parsed) Segments() []Segment {
	var out []Segment
	for _, pl := range p.Pipelines {
		out = append(out, pl...)
	}
	return out
}

// homeDir is resolved once; an empty value only disables the $HOME-literal
// token checks, the ~ forms still match.
var homeDir, _ = os.UserHomeDir()

// wrapperExecutables are stripped before the real executable is identified,
// so "sudo rm -rf ~" is analyzed as "rm -rf ~".
var wrapperExecutables = map[string]bool{
	"sudo":  true,
	"doas":  true,
	"env":   true,
	"nohup": true,
}

// parseShell tokenizes a command with the bash-dialect parser. When the
// parser rejects the input, a whitespace split keeps the predicates
// working on a best-effort basis.
func parseShell(command string) *Parsed {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return fallbackParse(command)
	}

	p := &Parsed{}
	for _, stmt := range file.Stmts {
		collectStmt(p, stmt)
	}
	if len(p.Pipelines) == 0 {
		return fallbackParse(command)
	}
	return p
}

func collectStmt(p *Parsed, stmt *syntax.Stmt) {
	if stmt.Cmd == nil {
		return
	}
	var pipeline []Segment
	collectPipe(&pipeline, p, stmt.Cmd)
	if len(pipeline) > 0 {
		p.Pipelines = append(p.Pipelines, pipeline)
	}
}

func collectPipe(pipeline *[]Segment, p *Parsed, cmd syntax.Command) {
	switch c := cmd.(type) {
	case *syntax.CallExpr:
		if seg, ok := callToSegment(c); ok {
			*pipeline = append(*pipeline, seg)
		}
	case *syntax.BinaryCmd:
		if c.Op == syntax.Pipe || c.Op == syntax.PipeAll {
			collectPipe(pipeline, p, c.X.Cmd)
			collectPipe(pipeline, p, c.Y.Cmd)
			return
		}
		// && || ; start a new pipeline for each side
		collectStmt(p, c.X)
		collectStmt(p, c.Y)
	case *syntax.Subshell:
		for _, s := range c.Stmts {
			collectStmt(p, s)
		}
	case *syntax.Block:
		for _, s := range c.Stmts {
			collectStmt(p, s)
		}
	}
}

func callToSegment(call *syntax.CallExpr) (Segment, bool) {
	if len(call.Args) == 0 {
		return Segment{}, false
	}
	var tokens []string
	for _, w := range call.Args {
		tokens = append(tokens, wordText(w))
	}
	// strip wrapper commands (sudo rm ... → rm ...)
	for len(tokens) > 1 && wrapperExecutables[filepath.Base(tokens[0])] {
		tokens = tokens[1:]
	}
	if len(tokens) == 0 || tokens[0] == "" {
		return Segment{}, false
	}
	return Segment{
		Executable: filepath.Base(tokens[0]),
		Tokens:     tokens[1:],
	}, true
}

// wordText reconstructs a word's effective text: quotes are dropped so the
// predicates see the value the shell would pass, while expansions keep
// their source form ($HOME stays "$HOME").
func wordText(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		sb.WriteString(partText(part))
	}
	return sb.String()
}

func partText(part syntax.WordPart) string {
	switch p := part.(type) {
	case *syntax.Lit:
		return p.Value
	case *syntax.SglQuoted:
		return p.Value
	case *syntax.DblQuoted:
		var sb strings.Builder
		for _, inner := range p.Parts {
			sb.WriteString(partText(inner))
		}
		return sb.String()
	case *syntax.ParamExp:
		if p.Param != nil {
			return "$" + p.Param.Value
		}
	}
	return ""
}

func fallbackParse(command string) *Parsed {
	p := &Parsed{}
	var pipeline []Segment
	var current []string

	flush := func() {
		if len(current) > 0 {
			tokens := current
			for len(tokens) > 1 && wrapperExecutables[filepath.Base(tokens[0])] {
				tokens = tokens[1:]
			}
			pipeline = append(pipeline, Segment{
				Executable: filepath.Base(tokens[0]),
				Tokens:     tokens[1:],
			})
			current = nil
		}
	}
	endPipeline := func() {
		flush()
		if len(pipeline) > 0 {
			p.Pipelines = append(p.Pipelines, pipeline)
			pipeline = nil
		}
	}

	for _, field := range strings.Fields(command) {
		switch field {
		case "|", "|&":
			flush()
		case "&&", "||", ";":
			endPipeline()
		default:
			current = append(current, field)
		}
	}
	endPipeline()
	return p
}

// hasFlag reports whether any token carries the given short flag letter or
// the long form, so both "rm -rf" and "rm --recursive --force" match.
func hasFlag(tokens []string, short rune, long string) bool {
	for _, tok := range tokens {
		if tok == "--"+long {
			return true
		}
		if strings.HasPrefix(tok, "--") || !strings.HasPrefix(tok, "-") || len(tok) < 2 {
			continue
		}
		if strings.ContainsRune(tok[1:], short) {
			return true
		}
	}
	return false
}

// positionalArgs returns the tokens that are not flags.
func positionalArgs(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "-") && tok != "-" {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// denotesHome reports whether a single token denotes the user's home
// directory, including the glob and dot forms that empty it just as
// thoroughly. This is a token-level test, never a substring match, so
// "~/Downloads/tmp" does not count.
func denotesHome(token string) bool {
	switch token {
	case "~", "~/", "~/*", "~/.",
		"$HOME", "$HOME/", "$HOME/*", "$HOME/.",
		"${HOME}", "${HOME}/", "${HOME}/*", "${HOME}/.":
		return true
	}
	if homeDir != "" {
		cleaned := filepath.Clean(strings.TrimSuffix(token, "/*"))
		if cleaned == filepath.Clean(homeDir) {
			return true
		}
	}
	return false
}

// denotesRoot reports whether a single token denotes the filesystem root.
func denotesRoot(token string) bool {
	switch token {
	case "/", "/*", "//":
		return true
	}
	return false
}
