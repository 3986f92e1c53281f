package provider

import (
	"context"
	"time"

	"github.com/nexuscore/agentkit/internal/backoff"
	"github.com/nexuscore/agentkit/internal/ratelimit"
	"github.com/nexuscore/agentkit/pkg/errs"
)

// RetryPolicy is the spec's fixed retry contract: 500ms initial backoff doubling to a
// cap of 8s with jitter, 4 attempts maximum, applied only to RateLimited/Timeout/
// transient-5xx failures.
func RetryPolicy() backoff.BackoffPolicy {
	return backoff.BackoffPolicy{InitialMs: 500, MaxMs: 8000, Factor: 2, Jitter: 0.2}
}

// MaxAttempts is the per-call retry budget every adapter shares.
const MaxAttempts = 4

// WithRetry runs fn under RetryPolicy()/MaxAttempts, retrying only when fn's error is
// errs.Retryable; any other error (or success) returns immediately. This is the
// single call site every adapter routes its upstream request through, so the
// 500ms→8s/×2/jitter/4-attempt policy is enforced once, not re-implemented per
// provider. Unlike backoff.RetryWithBackoff (which retries unconditionally up to
// maxAttempts), WithRetry consults the error's Kind between attempts because only a
// subset of Kinds are ever worth retrying.
func WithRetry[T any](ctx context.Context, fn func(attempt int) (T, error)) (T, error) {
	policy := RetryPolicy()
	var zero T
	var lastErr error

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, errs.Wrap(errs.KindCancelled, "provider.WithRetry", err)
		}

		value, err := fn(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if !errs.Retryable(err) || attempt == MaxAttempts {
			if e, ok := errs.Of(err); ok {
				e.Attempts = attempt
			}
			return zero, err
		}

		if serr := sleep(ctx, backoff.ComputeBackoff(policy, attempt)); serr != nil {
			return zero, errs.Wrap(errs.KindCancelled, "provider.WithRetry", serr)
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimiters bundles one token bucket per provider Kind, shared process-wide so
// multiple Clients for the same upstream cooperate on one budget, matching the
// spec's "global per provider" rate limiting (§5).
type RateLimiters struct {
	buckets map[Kind]*ratelimit.Bucket
}

// NewRateLimiters constructs a bucket per kind using cfg as the shared rate limit
// configuration.
func NewRateLimiters(cfg ratelimit.Config, kinds ...Kind) *RateLimiters {
	rl := &RateLimiters{buckets: make(map[Kind]*ratelimit.Bucket, len(kinds))}
	for _, k := range kinds {
		rl.buckets[k] = ratelimit.NewBucket(cfg)
	}
	return rl
}

// Allow reports whether a call against kind may proceed now.
func (r *RateLimiters) Allow(kind Kind) bool {
	b, ok := r.buckets[kind]
	if !ok {
		return true
	}
	return b.Allow()
}
