// internal/llmclient/resilient.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/config"
)

// permanentError marks a provider failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// statusCode digs the HTTP status out of any provider SDK error.
func statusCode(err error) (int, bool) {
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode, true
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return anErr.StatusCode, true
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code, true
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) {
		return gErrPtr.Code, true
	}
	return 0, false
}

// isRetryable reports whether err is worth another attempt: network failures,
// throttling and server errors are; client errors are not.
func isRetryable(err error) bool {
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	code, ok := statusCode(err)
	if !ok {
		return true
	}
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// ResilientClient adds rate limiting, a per-attempt timeout, and exponential
// backoff retries to another client.
type ResilientClient struct {
	inner   schemas.LLMClient
	limiter *rate.Limiter
	cfg     config.LLMConfig
	logger  *zap.Logger
	// newBackOff is swapped in tests for a fast policy.
	newBackOff func() backoff.BackOff
}

// NewResilientClient wraps inner. A zero RateLimit disables limiting.
func NewResilientClient(inner schemas.LLMClient, cfg config.LLMConfig, logger *zap.Logger) *ResilientClient {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	rc := &ResilientClient{
		inner:   inner,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.Named("llm_client.resilient"),
	}
	rc.newBackOff = rc.defaultBackOff
	return rc
}

func (r *ResilientClient) defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.cfg.Retry.InitialInterval > 0 {
		b.InitialInterval = r.cfg.Retry.InitialInterval
	}
	if r.cfg.Retry.MaxInterval > 0 {
		b.MaxInterval = r.cfg.Retry.MaxInterval
	}
	b.MaxElapsedTime = r.cfg.Retry.MaxElapsedTime
	return b
}

// Generate calls the wrapped client until it succeeds, fails permanently, or
// the retry budget or ctx runs out.
func (r *ResilientClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	var out string
	attempt := 0

	operation := func() error {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		callCtx := ctx
		if r.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
			defer cancel()
		}

		text, err := r.inner.Generate(callCtx, req)
		if err != nil {
			if ctx.Err() != nil || !isRetryable(err) {
				return backoff.Permanent(err)
			}
			r.logger.Warn("LLM request failed, retrying...", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		out = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(r.newBackOff(), ctx)); err != nil {
		return "", err
	}
	return out, nil
}

// Close closes the wrapped client.
func (r *ResilientClient) Close() error { return r.inner.Close() }
