// Package resilience composes timeout, retry, and circuit-breaker behavior
// into named pipelines, and provides a token-bucket rate limiter scoped per
// (tool, client) pair.
package resilience

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"compendium/internal/errs"
)

// PipelineConfig configures one named pipeline's timeout, retry, and
// circuit-breaker behavior.
type PipelineConfig struct {
	Name    string
	Timeout time.Duration

	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration

	FailureRatio     float64       // breaker trips when failures/requests exceeds this
	MinThroughput    uint32        // minimum requests in a window before the ratio is evaluated
	BreakDuration    time.Duration // how long the breaker stays open before probing
	HalfOpenMaxCalls uint32
}

// EmbeddingPipeline, StoragePipeline, and DefaultPipeline are the three
// named pipeline configurations compendium wires its background operations
// through.
func EmbeddingPipeline() PipelineConfig {
	return PipelineConfig{
		Name: "embedding", Timeout: 20 * time.Second,
		MaxRetries: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second,
		FailureRatio: 0.5, MinThroughput: 5, BreakDuration: 30 * time.Second, HalfOpenMaxCalls: 2,
	}
}

func StoragePipeline() PipelineConfig {
	return PipelineConfig{
		Name: "storage", Timeout: 10 * time.Second,
		MaxRetries: 2, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second,
		FailureRatio: 0.6, MinThroughput: 10, BreakDuration: 15 * time.Second, HalfOpenMaxCalls: 3,
	}
}

func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		Name: "default", Timeout: 15 * time.Second,
		MaxRetries: 2, BaseDelay: 150 * time.Millisecond, MaxDelay: 3 * time.Second,
		FailureRatio: 0.5, MinThroughput: 5, BreakDuration: 20 * time.Second, HalfOpenMaxCalls: 2,
	}
}

// Pipeline wraps a breaker and retry/backoff policy around an operation.
type Pipeline struct {
	cfg     PipelineConfig
	breaker *gobreaker.CircuitBreaker[any]
}

// New builds a Pipeline from cfg, wiring a gobreaker.CircuitBreaker with the
// configured failure ratio, minimum throughput, and break duration.
func New(cfg PipelineConfig) *Pipeline {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Interval:    0, // counts never reset except on state transition
		Timeout:     cfg.BreakDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinThroughput {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio > cfg.FailureRatio
		},
	}
	return &Pipeline{cfg: cfg, breaker: gobreaker.NewCircuitBreaker[any](settings)}
}

// Do runs fn under timeout, then retry-with-backoff, then circuit breaker:
// the breaker gates whether an attempt is made at all; each attempt that is
// allowed through gets its own timeout and is retried on failure up to
// MaxRetries times.
func (p *Pipeline) Do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		return p.retrying(ctx, fn)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errs.Wrap(errs.KindCircuitOpen, "pipeline "+p.cfg.Name+" circuit open", err)
		}
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) retrying(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.BaseDelay
	b.MaxInterval = p.cfg.MaxDelay

	operation := func() (any, error) {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()
		}

		res, err := fn(attemptCtx)
		if err == nil {
			return res, nil
		}
		if attemptCtx.Err() == context.DeadlineExceeded {
			err = errs.Wrap(errs.KindTimeout, "pipeline "+p.cfg.Name+" attempt timed out", err)
		}
		if ctx.Err() == context.Canceled {
			return nil, backoff.Permanent(errs.Wrap(errs.KindCancelled, "pipeline "+p.cfg.Name+" cancelled", err))
		}
		if !isTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.cfg.MaxRetries)+1),
	)
}

// transientMessage matches error text indicating a transient, retry-eligible
// failure: network I/O, timeout, and explicitly classified provider hiccups.
var transientMessage = regexp.MustCompile(`(?i)connection|timeout|unavailable|temporarily`)

// isTransient reports whether err is retry-eligible. Validation and argument
// errors, and anything else not recognized as network I/O, timeout, or a
// provider-unavailable condition, are returned to the caller without retry.
func isTransient(err error) bool {
	var ce *errs.CompendiumError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case errs.KindTimeout, errs.KindProviderUnavailable:
			return true
		case errs.KindInvalidArgument, errs.KindValidationFailed, errs.KindNotFound,
			errs.KindConflict, errs.KindDuplicateDocType, errs.KindInvalidDocType,
			errs.KindCancelled, errs.KindCircuitOpen, errs.KindProviderContractViolation:
			return false
		}
	}
	return transientMessage.MatchString(err.Error())
}
