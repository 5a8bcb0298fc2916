package llm

import (
	"context"
	stderrors "errors"
	"log"
	"time"

	"riskscore/ports"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// ResilientGenerator throttles and retries calls to another generator.
// Only network, rate-limit and 5xx failures are retried.
type ResilientGenerator struct {
	next            ports.TextGenerator
	limiter         *rate.Limiter
	maxRetries      int
	initialInterval time.Duration
}

// NewResilientGenerator wraps next. ratePerMinute <= 0 disables throttling.
func NewResilientGenerator(next ports.TextGenerator, maxRetries, ratePerMinute int) *ResilientGenerator {
	g := &ResilientGenerator{
		next:            next,
		maxRetries:      maxRetries,
		initialInterval: 500 * time.Millisecond,
	}
	if ratePerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), 1)
	}
	return g
}

// WithInitialInterval sets the first backoff delay
func (g *ResilientGenerator) WithInitialInterval(d time.Duration) *ResilientGenerator {
	g.initialInterval = d
	return g
}

func (g *ResilientGenerator) Provider() string {
	return g.next.Provider()
}

func (g *ResilientGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (*ports.LLMResponse, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.initialInterval
	policy.MaxElapsedTime = 0

	retries := g.maxRetries
	if retries < 0 {
		retries = 0
	}

	var resp *ports.LLMResponse
	attempt := 0
	op := func() error {
		attempt++
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(&GenerationError{Provider: g.Provider(), Kind: KindRateLimit, Cause: err})
			}
		}

		out, err := g.next.Generate(ctx, req)
		if err == nil {
			resp = out
			return nil
		}

		var genErr *GenerationError
		if stderrors.As(err, &genErr) && genErr.Retryable() && ctx.Err() == nil {
			log.Printf("[LLM] %s attempt %d failed, retrying: %v", g.Provider(), attempt, err)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
