package provider

import (
	"fmt"
	"time"
)

// Kind tags which upstream a Config targets.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindOpenAI    Kind = "openai"
	KindBedrock   Kind = "bedrock"
	KindGemini    Kind = "gemini"
)

// Config is the tagged ProviderConfig variant every adapter constructs from. apiKey
// is never included in String()'s rendering — config values must never be logged raw.
type Config struct {
	Kind           Kind
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	OrganizationID string

	// Bedrock-specific.
	AWSRegion string

	// Gemini-specific: when APIKey is empty, a non-nil value selects the Vertex AI
	// backend. The gemini adapter only checks it for nil and never reads the value.
	OAuthTokenSource any
}

// String renders the config for logs/errors with APIKey redacted, per the
// spec's "apiKey is redacted in all string renderings" invariant.
func (c Config) String() string {
	redacted := "<empty>"
	if c.APIKey != "" {
		redacted = "***redacted***"
	}
	return fmt.Sprintf("Config{kind=%s, baseURL=%q, model=%q, apiKey=%s, timeout=%s}",
		c.Kind, c.BaseURL, c.Model, redacted, c.Timeout)
}

// DefaultConfig returns zero-value-safe defaults for kind, matching each adapter's
// own default-model fallback.
func DefaultConfig(kind Kind) Config {
	cfg := Config{Kind: kind, Timeout: 60 * time.Second}
	switch kind {
	case KindAnthropic:
		cfg.Model = "claude-sonnet-4-20250514"
	case KindOpenAI:
		cfg.Model = "gpt-4o"
	case KindBedrock:
		cfg.Model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
		cfg.AWSRegion = "us-east-1"
	case KindGemini:
		cfg.Model = "gemini-2.0-flash"
	}
	return cfg
}
