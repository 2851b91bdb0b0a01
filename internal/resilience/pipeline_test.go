package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"compendium/internal/errs"
)

func TestPipeline_RetriesThenSucceeds(t *testing.T) {
	cfg := DefaultPipeline()
	cfg.MaxRetries = 3
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	p := New(cfg)

	attempts := 0
	_, err := p.Do(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestPipeline_NonTransientErrorSkipsRetry(t *testing.T) {
	cfg := DefaultPipeline()
	cfg.MaxRetries = 3
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	p := New(cfg)

	attempts := 0
	_, err := p.Do(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		return nil, errs.New(errs.KindInvalidArgument, "empty text")
	})
	if !errs.Is(err, errs.KindInvalidArgument) {
		t.Fatalf("expected invalid argument error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected no retries for a non-transient error, got %d attempts", attempts)
	}
}

func TestPipeline_OpensBreakerAfterFailures(t *testing.T) {
	cfg := DefaultPipeline()
	cfg.MaxRetries = 0
	cfg.MinThroughput = 2
	cfg.FailureRatio = 0.5
	cfg.BreakDuration = time.Hour
	p := New(cfg)

	fail := func(ctx context.Context) (any, error) { return nil, errors.New("boom") }
	for i := 0; i < 3; i++ {
		_, _ = p.Do(context.Background(), fail)
	}

	_, err := p.Do(context.Background(), func(ctx context.Context) (any, error) { return "ok", nil })
	if !errs.Is(err, errs.KindCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
}

func TestPipeline_TimeoutClassifiedCorrectly(t *testing.T) {
	cfg := DefaultPipeline()
	cfg.Timeout = time.Millisecond
	cfg.MaxRetries = 0
	p := New(cfg)

	_, err := p.Do(context.Background(), func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errs.Is(err, errs.KindTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}
