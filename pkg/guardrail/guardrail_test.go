package guardrail

import (
	"context"
	"regexp"
	"testing"

	"github.com/nexuscore/agentkit/pkg/conversation"
	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/provider"
	"github.com/nexuscore/agentkit/pkg/schema"
)

func TestLengthCheck(t *testing.T) {
	g := LengthCheck{MaxChars: 5}

	res, err := g.Check(context.Background(), "short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("expected Pass for content at the limit, got %v", res.Verdict)
	}

	res, err = g.Check(context.Background(), "too long")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected Reject for oversized content, got %v", res.Verdict)
	}
}

func TestRegexValidator_TransformRedacts(t *testing.T) {
	g := RegexValidator{Patterns: []*regexp.Regexp{regexp.MustCompile(`\d{3}-\d{2}-\d{4}`)}}
	res, err := g.Check(context.Background(), "ssn is 123-45-6789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictTransform {
		t.Fatalf("expected Transform, got %v", res.Verdict)
	}
	if res.Content == "ssn is 123-45-6789" {
		t.Error("expected the match to be redacted")
	}
}

func TestRegexValidator_RejectOnHit(t *testing.T) {
	g := RegexValidator{Patterns: []*regexp.Regexp{regexp.MustCompile(`secret`)}, RejectOnHit: true}
	res, err := g.Check(context.Background(), "this is a secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected Reject, got %v", res.Verdict)
	}
}

func TestSecretSanitizer_RedactsApiKey(t *testing.T) {
	g := SecretSanitizer{}
	content := `api_key="abcdefghijklmnopqrstuvwxyz"`
	res, err := g.Check(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictTransform {
		t.Fatalf("expected Transform, got %v", res.Verdict)
	}
	if res.Content == content {
		t.Error("expected the api key to be redacted")
	}
}

func TestDetectSecrets(t *testing.T) {
	hits := DetectSecrets(`Bearer eyJhbGciOiJIUzI1NiJ9.payload`)
	found := false
	for _, h := range hits {
		if h == "bearer_token" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected bearer_token to be detected, got %v", hits)
	}
}

func TestJSONValidator(t *testing.T) {
	s := schema.Object().WithProperty("name", schema.String(), true)
	g := JSONValidator{Schema: s}

	res, err := g.Check(context.Background(), `{"name": "alice"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("expected Pass for valid JSON, got %v: %s", res.Verdict, res.Reason)
	}

	res, err = g.Check(context.Background(), `not json`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected Reject for invalid JSON, got %v", res.Verdict)
	}

	res, err = g.Check(context.Background(), `{}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected Reject for missing required property, got %v", res.Verdict)
	}
}

func TestProfanityFilter_RedactsByDefault(t *testing.T) {
	g := ProfanityFilter{Wordlist: []string{"darn"}}
	res, err := g.Check(context.Background(), "oh darn it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictTransform {
		t.Fatalf("expected Transform, got %v", res.Verdict)
	}
	if res.Content == "oh darn it" {
		t.Error("expected the flagged word to be redacted")
	}
}

func TestProfanityFilter_RejectOnHit(t *testing.T) {
	g := ProfanityFilter{Wordlist: []string{"darn"}, RejectOnHit: true}
	res, err := g.Check(context.Background(), "oh darn it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected Reject, got %v", res.Verdict)
	}
}

func TestProfanityFilter_WholeWordOnly(t *testing.T) {
	g := ProfanityFilter{Wordlist: []string{"ass"}}
	res, err := g.Check(context.Background(), "class assignment")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("expected Pass: %q should not match inside 'class'/'assignment', got %v", "ass", res.Verdict)
	}
}

// stubClient is a minimal provider.Client for exercising Judge without a real
// upstream call.
type stubClient struct {
	response string
	err      error
}

func (s *stubClient) Name() string { return "stub" }

func (s *stubClient) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResult, error) {
	if s.err != nil {
		return provider.CompletionResult{}, s.err
	}
	return provider.CompletionResult{
		Message: conversation.NewMessage(conversation.RoleAssistant, s.response),
	}, nil
}

func (s *stubClient) Stream(ctx context.Context, req provider.CompletionRequest, sink provider.Sink) (provider.CompletionResult, error) {
	return provider.CompletionResult{}, nil
}

func (s *stubClient) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResult, error) {
	return provider.EmbeddingResult{}, nil
}

func (s *stubClient) Models(ctx context.Context) ([]provider.Model, error) { return nil, nil }

var _ provider.Client = (*stubClient)(nil)

func TestJudge_PassAndReject(t *testing.T) {
	passClient := &stubClient{response: "PASS"}
	j := Judge{Client: passClient, Model: "test-model", Rubric: "Reject hateful content."}
	res, err := j.Check(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("expected Pass, got %v", res.Verdict)
	}

	rejectClient := &stubClient{response: "REJECT: contains hateful content"}
	j = Judge{Client: rejectClient, Model: "test-model", Rubric: "Reject hateful content."}
	res, err = j.Check(context.Background(), "some bad text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected Reject, got %v", res.Verdict)
	}
	if res.Reason == "" {
		t.Error("expected a reason to be captured")
	}
}

func TestJudge_PropagatesClientError(t *testing.T) {
	j := Judge{Client: &stubClient{err: errs.New(errs.KindNetwork, "stub", "boom")}, Model: "test-model"}
	_, err := j.Check(context.Background(), "text")
	if err == nil {
		t.Fatal("expected an error when the client fails")
	}
}

func TestAll_ShortCircuitsOnReject(t *testing.T) {
	g := All(LengthCheck{MaxChars: 3}, alwaysCalled{})
	res, err := g.Check(context.Background(), "too long for this check")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected Reject, got %v", res.Verdict)
	}
}

func TestAll_ThreadsTransformBetweenChildren(t *testing.T) {
	first := RegexValidator{Patterns: []*regexp.Regexp{regexp.MustCompile(`foo`)}, RedactWith: "bar"}
	second := RegexValidator{Patterns: []*regexp.Regexp{regexp.MustCompile(`bar`)}, RejectOnHit: true}

	g := All(first, second)
	res, err := g.Check(context.Background(), "foo appears here")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected the second guardrail to see the first's transformed output and reject, got %v", res.Verdict)
	}
}

func TestAll_PassesThroughUnchangedContentAsPass(t *testing.T) {
	g := All(LengthCheck{MaxChars: 100})
	res, err := g.Check(context.Background(), "fine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("expected Pass when no child transforms, got %v", res.Verdict)
	}
}

func TestAny_PassesIfOneChildPasses(t *testing.T) {
	g := Any(LengthCheck{MaxChars: 1}, LengthCheck{MaxChars: 100})
	res, err := g.Check(context.Background(), "fits in the second check")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("expected Pass, got %v", res.Verdict)
	}
}

func TestAny_RejectsOnlyIfAllChildrenReject(t *testing.T) {
	g := Any(LengthCheck{MaxChars: 1}, LengthCheck{MaxChars: 2})
	res, err := g.Check(context.Background(), "way too long for either check")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected Reject when every child rejects, got %v", res.Verdict)
	}
}

func TestResult_Err(t *testing.T) {
	if Pass("x").Err("op") != nil {
		t.Error("Pass should produce a nil error")
	}
	if Transform("x").Err("op") != nil {
		t.Error("Transform should produce a nil error")
	}
	rejErr := Reject("bad").Err("guardrail.op")
	if rejErr == nil || rejErr.Kind != errs.KindGuardrail {
		t.Errorf("expected a KindGuardrail error, got %v", rejErr)
	}
}

// alwaysCalled exists only to prove All short-circuits: if it were evaluated, its
// Name would not matter, but reaching it at all after a reject would be a defect
// the test above already catches via the final Verdict.
type alwaysCalled struct{}

func (alwaysCalled) Name() string { return "always_called" }
func (alwaysCalled) Check(_ context.Context, content string) (Result, *errs.Error) {
	return Reject("should never run"), nil
}
