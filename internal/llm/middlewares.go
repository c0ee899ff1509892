package llm

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
)

const maxRetryDelay = 10 * time.Second

var (
	middlewaresOnce sync.Once
	middlewares     []ai.ModelMiddleware
)

// Configure sets up the shared model middlewares: request logging, retries
// with exponential backoff, and a global RPM throttle. Must be called once
// before any flow runs; later calls are no-ops.
func Configure(maxRetries, maxRPM int) {
	middlewaresOnce.Do(func() {
		middlewares = []ai.ModelMiddleware{
			loggingMiddleware(),
			retryMiddleware(maxRetries),
			rateLimitMiddleware(maxRPM),
		}
	})
}

// getMiddlewares returns the shared middleware chain. Safe to call before
// Configure: flows then run without retries or throttling.
func getMiddlewares() []ai.ModelMiddleware {
	return middlewares
}

func loggingMiddleware() ai.ModelMiddleware {
	return func(next ai.ModelFunc) ai.ModelFunc {
		return func(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req, cb)
			if err != nil {
				log.Printf("⚠️ LLM call failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
				return nil, err
			}
			log.Printf("ℹ️ LLM call done in %s (in=%d out=%d tokens)",
				time.Since(start).Round(time.Millisecond),
				resp.Usage.InputTokens, resp.Usage.OutputTokens)
			return resp, nil
		}
	}
}

func retryMiddleware(maxRetries int) ai.ModelMiddleware {
	return func(next ai.ModelFunc) ai.ModelFunc {
		return func(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
			var lastErr error
			delay := time.Second

			for attempt := 0; attempt <= maxRetries; attempt++ {
				if attempt > 0 {
					log.Printf("⚠️ LLM retry %d/%d after %v", attempt, maxRetries, lastErr)
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(delay):
					}
					delay *= 2
					if delay > maxRetryDelay {
						delay = maxRetryDelay
					}
				}

				resp, err := next(ctx, req, cb)
				if err == nil {
					return resp, nil
				}
				lastErr = err
			}
			return nil, fmt.Errorf("LLM call failed after %d attempts: %w", maxRetries+1, lastErr)
		}
	}
}

// rateLimitMiddleware spaces requests so the global rate stays under maxRPM.
func rateLimitMiddleware(maxRPM int) ai.ModelMiddleware {
	if maxRPM <= 0 {
		maxRPM = 60
	}
	interval := time.Minute / time.Duration(maxRPM)

	var mu sync.Mutex
	var nextSlot time.Time

	return func(next ai.ModelFunc) ai.ModelFunc {
		return func(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
			mu.Lock()
			now := time.Now()
			if nextSlot.Before(now) {
				nextSlot = now
			}
			wait := nextSlot.Sub(now)
			nextSlot = nextSlot.Add(interval)
			mu.Unlock()

			if wait > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(wait):
				}
			}
			return next(ctx, req, cb)
		}
	}
}
