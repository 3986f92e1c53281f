package tool

import "strings"

// Policy restricts which of a Registry's tools are available to a given agent/run,
// by name or wildcard pattern. Adapted from internal/agent/tool_registry.go's
// filterToolsByPolicy/matchesToolPatterns/matchToolPattern, which supports an
// "mcp:*"-style namespace wildcard and a bare ".*" suffix wildcard.
type Policy struct {
	// Allow lists patterns a tool name must match at least one of to be available.
	// An empty Allow means "all tools allowed" (subject to Deny).
	Allow []string
	// Deny lists patterns that exclude a tool even if it matches Allow.
	Deny []string
}

// Filter returns the subset of names permitted by p, preserving input order.
func (p Policy) Filter(names []string) []string {
	if len(p.Allow) == 0 && len(p.Deny) == 0 {
		return names
	}
	var out []string
	for _, n := range names {
		if matchesAny(n, p.Deny) {
			continue
		}
		if len(p.Allow) == 0 || matchesAny(n, p.Allow) {
			out = append(out, n)
		}
	}
	return out
}

// Allowed reports whether a single tool name passes the policy.
func (p Policy) Allowed(name string) bool {
	if matchesAny(name, p.Deny) {
		return false
	}
	return len(p.Allow) == 0 || matchesAny(name, p.Allow)
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if matchPattern(name, pat) {
			return true
		}
	}
	return false
}

// matchPattern supports four forms: an exact name, a "prefix:*" namespace wildcard
// (e.g. "mcp:*" matches any tool whose name starts with "mcp:"), any other pattern
// ending in "*" as a plain prefix match, and a bare "*" that matches everything.
func matchPattern(name, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ":*"); ok {
		return strings.HasPrefix(name, prefix+":")
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}
	return name == pattern
}
