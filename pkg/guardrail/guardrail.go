// Package guardrail implements pre/post validation hooks over agent inputs and
// outputs: Pass/Reject/Transform results composable via all/any/sequence. Built-ins
// are grounded on internal/agent/tool_result_guard.go's secret-sanitization pattern,
// generalized from "redact tool results" to the spec's full pluggable Guardrail
// interface.
package guardrail

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/provider"
	"github.com/nexuscore/agentkit/pkg/schema"
)

// Verdict is the tagged outcome of a Guardrail check.
type Verdict string

const (
	// VerdictPass means the content is unchanged and accepted.
	VerdictPass Verdict = "pass"
	// VerdictReject means the content is rejected; the run fails with KindGuardrail.
	VerdictReject Verdict = "reject"
	// VerdictTransform means the content is accepted but Result.Content is replaced.
	VerdictTransform Verdict = "transform"
)

// Result is what a Guardrail returns: the non-mutation invariant holds because a
// Guardrail never edits its input in place — Transform always returns new content,
// leaving the original caller-held value untouched.
type Result struct {
	Verdict Verdict
	Content string
	Reason  string
}

// Pass returns an unmodified-acceptance Result.
func Pass(content string) Result { return Result{Verdict: VerdictPass, Content: content} }

// Reject returns a rejection Result carrying reason.
func Reject(reason string) Result { return Result{Verdict: VerdictReject, Reason: reason} }

// Transform returns an acceptance Result with content replaced.
func Transform(content string) Result { return Result{Verdict: VerdictTransform, Content: content} }

// Guardrail checks (and possibly rewrites) a single piece of text — a tool result, a
// user message, or a model completion — before it proceeds further through the
// engine.
type Guardrail interface {
	Check(ctx context.Context, content string) (Result, *errs.Error)
	Name() string
}

// Err converts a rejected Result into the tagged *errs.Error the Agent Engine
// surfaces as Failed(Guardrail(reason)); it returns nil for Pass/Transform.
func (r Result) Err(op string) *errs.Error {
	if r.Verdict != VerdictReject {
		return nil
	}
	return errs.New(errs.KindGuardrail, op, r.Reason)
}

// --- composition ---

// All runs every guardrail in order, short-circuiting on the first Reject and
// threading each guardrail's Transform output into the next.
func All(guards ...Guardrail) Guardrail { return sequence{guards} }

// Sequence is an alias of All: guardrails are meaningfully ordered (each sees the
// previous one's transformed output), so "all" and "sequence" are the same
// composition in this implementation.
func Sequence(guards ...Guardrail) Guardrail { return sequence{guards} }

type sequence struct{ guards []Guardrail }

func (s sequence) Name() string { return "sequence" }

func (s sequence) Check(ctx context.Context, content string) (Result, *errs.Error) {
	cur := content
	for _, g := range s.guards {
		res, err := g.Check(ctx, cur)
		if err != nil {
			return Result{}, err
		}
		if res.Verdict == VerdictReject {
			return res, nil
		}
		if res.Verdict == VerdictTransform {
			cur = res.Content
		}
	}
	if cur != content {
		return Transform(cur), nil
	}
	return Pass(content), nil
}

// Any passes if at least one guardrail passes or transforms (returning the first
// non-reject verdict); rejects only if every guardrail rejects.
func Any(guards ...Guardrail) Guardrail { return anyOf{guards} }

type anyOf struct{ guards []Guardrail }

func (a anyOf) Name() string { return "any" }

func (a anyOf) Check(ctx context.Context, content string) (Result, *errs.Error) {
	var lastReject Result
	for _, g := range a.guards {
		res, err := g.Check(ctx, content)
		if err != nil {
			return Result{}, err
		}
		if res.Verdict != VerdictReject {
			return res, nil
		}
		lastReject = res
	}
	if len(a.guards) == 0 {
		return Pass(content), nil
	}
	return lastReject, nil
}

// --- built-ins ---

// LengthCheck rejects content longer than MaxChars.
type LengthCheck struct {
	MaxChars int
}

func (l LengthCheck) Name() string { return "length_check" }

func (l LengthCheck) Check(_ context.Context, content string) (Result, *errs.Error) {
	if l.MaxChars > 0 && len(content) > l.MaxChars {
		return Reject("content exceeds max length of " + itoa(l.MaxChars) + " characters"), nil
	}
	return Pass(content), nil
}

// RegexValidator redacts (or rejects) content matching Patterns.
type RegexValidator struct {
	Patterns    []*regexp.Regexp
	RedactWith  string
	RejectOnHit bool
}

func (r RegexValidator) Name() string { return "regex_validator" }

func (r RegexValidator) Check(_ context.Context, content string) (Result, *errs.Error) {
	redaction := r.RedactWith
	if redaction == "" {
		redaction = "[REDACTED]"
	}
	hit := false
	out := content
	for _, re := range r.Patterns {
		if re.MatchString(out) {
			hit = true
		}
		out = re.ReplaceAllString(out, redaction)
	}
	if !hit {
		return Pass(content), nil
	}
	if r.RejectOnHit {
		return Reject("content matched a disallowed pattern"), nil
	}
	return Transform(out), nil
}

// builtinSecretPatterns mirrors the teacher's always-on secret detectors: API keys,
// bearer tokens, AWS credentials, generic password/secret/token assignments, and PEM
// private keys.
var builtinSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[\w-]{20,}['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w-\.]+`),
	regexp.MustCompile(`(?i)(aws|amazon).*?(key|secret|token)\s*[:=]\s*['"]?[\w/+=]{20,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|secret|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
}

// SecretSanitizer redacts common secret shapes (API keys, bearer tokens, AWS
// credentials, PEM private keys) from content, transforming rather than rejecting —
// the same default behavior as the teacher's SanitizeToolResult.
type SecretSanitizer struct {
	RedactionText string
}

func (s SecretSanitizer) Name() string { return "secret_sanitizer" }

func (s SecretSanitizer) Check(_ context.Context, content string) (Result, *errs.Error) {
	redaction := s.RedactionText
	if redaction == "" {
		redaction = "[REDACTED]"
	}
	out := content
	for _, re := range builtinSecretPatterns {
		out = re.ReplaceAllString(out, redaction)
	}
	if out == content {
		return Pass(content), nil
	}
	return Transform(out), nil
}

// DetectSecrets reports which built-in secret patterns matched content, for logging
// or alerting without mutating anything.
func DetectSecrets(content string) []string {
	names := []string{"api_key", "bearer_token", "aws_key", "generic_secret", "private_key"}
	var hits []string
	for i, re := range builtinSecretPatterns {
		if re.MatchString(content) {
			hits = append(hits, names[i])
		}
	}
	return hits
}

// ProfanityFilter rejects (or redacts) content containing any word from Wordlist,
// matched case-insensitively on whole words.
type ProfanityFilter struct {
	Wordlist   []string
	RedactWith string
	RejectOnHit bool
}

func (p ProfanityFilter) Name() string { return "profanity_filter" }

func (p ProfanityFilter) Check(_ context.Context, content string) (Result, *errs.Error) {
	redaction := p.RedactWith
	if redaction == "" {
		redaction = "[REDACTED]"
	}
	out := content
	hit := false
	for _, word := range p.Wordlist {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		if re.MatchString(out) {
			hit = true
		}
		out = re.ReplaceAllString(out, redaction)
	}
	if !hit {
		return Pass(content), nil
	}
	if p.RejectOnHit {
		return Reject("content contains disallowed language"), nil
	}
	return Transform(out), nil
}

// JSONValidator rejects content that does not parse as JSON conforming to Schema,
// reusing the same validation engine (santhosh-tekuri/jsonschema) the Tool Registry
// validates tool arguments with.
type JSONValidator struct {
	Schema *schema.Schema
}

func (j JSONValidator) Name() string { return "json_validator" }

func (j JSONValidator) Check(_ context.Context, content string) (Result, *errs.Error) {
	var value any
	if err := json.Unmarshal([]byte(content), &value); err != nil {
		return Reject("content is not valid JSON: " + err.Error()), nil
	}
	if verr := schema.Validate(j.Schema, value); verr != nil {
		return Reject(verr.Message), nil
	}
	return Pass(content), nil
}

// Judge asks a model whether content should pass, via the same provider.Client
// contract the Agent Engine uses for completions — no separate judge-specific HTTP
// path. Grounded on internal/rag/eval/judge.go's "ask a model to score this" pattern,
// generalized from RAG-answer judging to arbitrary guardrail judging.
type Judge struct {
	Client    provider.Client
	Model     string
	Rubric    string // instructions describing what to reject and why
}

func (j Judge) Name() string { return "judge" }

func (j Judge) Check(ctx context.Context, content string) (Result, *errs.Error) {
	prompt := j.Rubric + "\n\nContent to evaluate:\n" + content +
		"\n\nRespond with exactly PASS or REJECT: <reason>."
	req := provider.CompletionRequest{
		Model: j.Model,
		Messages: []provider.Message{
			{Role: provider.RoleUser, Content: prompt},
		},
	}
	res, err := j.Client.Complete(ctx, req)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindGuardrail, "guardrail.Judge", err)
	}
	verdict := strings.TrimSpace(res.Message.Content)
	if strings.HasPrefix(strings.ToUpper(verdict), "REJECT") {
		reason := strings.TrimSpace(strings.TrimPrefix(verdict, "REJECT:"))
		return Reject(reason), nil
	}
	return Pass(content), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
