package did

import (
	"regexp"
	"strings"
)

// InsecureAllowlist holds glob patterns of DIDs that may be resolved
// without the usual local-storage precondition, e.g. localhost agents
// used in development. These patterns never bypass signature
// verification, only the requirement that local storage spoke for the
// DID first.
type InsecureAllowlist []string

// Allows reports whether did matches any configured pattern.
func (l InsecureAllowlist) Allows(did string) bool {
	for _, pattern := range l {
		if globMatch(pattern, did) {
			return true
		}
	}
	return false
}

// globMatch reports whether name matches an fnmatch-style pattern: '*'
// matches any sequence of characters, including '/', and '?' matches
// exactly one character. Unlike path.Match, '*' is not stopped by path
// separators, matching the original implementation's fnmatch semantics
// for multi-segment patterns like "/wba/hostuser/*".
func globMatch(pattern, name string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// GlobMatch exports globMatch for packages outside did that need the
// same across-segment "*" semantics, e.g. server's exemption-path list.
func GlobMatch(pattern, name string) bool {
	return globMatch(pattern, name)
}
