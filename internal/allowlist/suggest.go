package allowlist

import (
	"regexp"
	"strings"
)

// hostRegex captures the host of the first URL in the text. Ported from
// the gate's domain extraction; the host alone is usually the part the
// user actually trusts.
var hostRegex = regexp.MustCompile(`https?://([^/\s'"]+)`)

const prefixLimit = 60

// Suggest derives an allowlist pattern candidate from a blocked action's
// textual form: the first recognizable URL host, escaped; otherwise the
// escaped literal prefix of the text. The result is offered to the user,
// never applied automatically.
func Suggest(text string) string {
	if m := hostRegex.FindStringSubmatch(text); len(m) > 1 {
		host := m[1]
		// strip userinfo and port so the pattern survives either form
		if at := strings.LastIndex(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		if colon := strings.Index(host, ":"); colon >= 0 {
			host = host[:colon]
		}
		if host != "" {
			return regexp.QuoteMeta(host)
		}
	}

	prefix := text
	if len(prefix) > prefixLimit {
		prefix = prefix[:prefixLimit]
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	return regexp.QuoteMeta(prefix)
}
