package adwflow

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy is a bounded-attempt, fixed-backoff retry policy. Stateless
// and shared across invocations.
type RetryPolicy struct {
	MaxAttempts int             // Total attempts, including the first
	Delays      []time.Duration // Delay before retry, indexed by attempt
}

// DefaultRetryPolicy returns the standard policy: 3 attempts with delays
// of 1s, 3s and 5s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delays:      []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}
}

// DelayFor returns the backoff delay after the given zero-based attempt,
// clamped to the last delay when attempts exceed the delay list.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if attempt >= len(p.Delays) {
		attempt = len(p.Delays) - 1
	}
	return p.Delays[attempt]
}

// RetryExecutor wraps an Invoker with the retry policy. It is stateless
// with respect to workflow state and never mutates it.
type RetryExecutor struct {
	invoker Invoker
	policy  RetryPolicy
	sleep   func(time.Duration)
	logger  *slog.Logger
}

// RetryOption configures a RetryExecutor.
type RetryOption func(*RetryExecutor)

// WithPolicy overrides the default retry policy.
func WithPolicy(policy RetryPolicy) RetryOption {
	return func(e *RetryExecutor) {
		e.policy = policy
	}
}

// WithSleep substitutes the sleep function. Tests use this to run with
// zero delay.
func WithSleep(sleep func(time.Duration)) RetryOption {
	return func(e *RetryExecutor) {
		e.sleep = sleep
	}
}

// WithRetryLogger sets the logger for retry attempts.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(e *RetryExecutor) {
		e.logger = logger
	}
}

// NewRetryExecutor creates an executor over the given invoker with the
// default policy.
func NewRetryExecutor(invoker Invoker, opts ...RetryOption) *RetryExecutor {
	e := &RetryExecutor{
		invoker: invoker,
		policy:  DefaultRetryPolicy(),
		sleep:   time.Sleep,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's retry policy.
func (e *RetryExecutor) Policy() RetryPolicy {
	return e.policy
}

// Invoke runs the request, retrying retryable failures up to the attempt
// budget. It returns immediately on the first success or the first
// non-retryable failure, and sleeps the policy delay between attempts.
// After exhausting the budget the last failure is returned unchanged.
func (e *RetryExecutor) Invoke(ctx context.Context, req AgentRequest) AgentResult {
	var result AgentResult

	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		result = e.invoker.Invoke(ctx, req)
		if result.Success || !result.Retryable {
			return result
		}

		if attempt < e.policy.MaxAttempts-1 {
			delay := e.policy.DelayFor(attempt)
			e.logger.Warn("agent invocation failed, retrying",
				"workflowId", req.WorkflowID,
				"command", req.Command,
				"attempt", attempt+1,
				"maxAttempts", e.policy.MaxAttempts,
				"delay", delay,
				"error", result.Err)
			e.sleep(delay)
		}
	}

	return result
}
