// Package translate implements the translation cache and provider chain:
// exact-match caching, single-flight coalescing of identical in-flight
// requests, per-provider retry with a last-known-good preference, and
// bounded-concurrency batch translation.
package translate

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/tripglot/translator-worker/internal/errors"
	"github.com/tripglot/translator-worker/internal/logging"
)

// Provider is one interchangeable translation backend.
type Provider interface {
	// ID identifies the provider in results and logs.
	ID() string
	// Translate returns the translated text and a provider-scale
	// confidence. Failures are ordinary errors; the chain decides
	// whether to retry or fall through.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, float64, error)
}

// Result is the outcome of a translation request. Provider failures are
// reported through Success/Error, never as a returned error.
type Result struct {
	Success     bool    `json:"success"`
	Translation string  `json:"translation,omitempty"`
	Confidence  float64 `json:"confidence"`
	ProviderID  string  `json:"providerId,omitempty"`
	FromCache   bool    `json:"fromCache"`
	Error       string  `json:"error,omitempty"`
}

// Options configure a single translation request.
type Options struct {
	SourceLang string
	TargetLang string
	// SkipCache bypasses the cache lookup (the result is still written
	// through on success).
	SkipCache bool
}

// ServiceConfig configures the translation service.
type ServiceConfig struct {
	Providers  []Provider
	Cache      *Cache
	Attempts   int           // per-provider attempts, default 2
	RetryDelay time.Duration // fixed delay between attempts, default 1s
	Timeout    time.Duration // per-call timeout, default 10s
	Window     int           // batch concurrency window, default 3
	Logger     *logging.Logger
}

// Service runs translation requests through the cache and provider chain.
type Service struct {
	providers  []Provider
	cache      *Cache
	attempts   int
	retryDelay time.Duration
	timeout    time.Duration
	window     int
	logger     *logging.Logger

	flight singleflight.Group

	mu       sync.Mutex
	lastGood string
}

// NewService creates the translation service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("translate")
	}
	return &Service{
		providers:  cfg.Providers,
		cache:      cfg.Cache,
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		timeout:    cfg.Timeout,
		window:     cfg.Window,
		logger:     cfg.Logger,
	}
}

// Translate resolves text through the cache, then the provider chain.
// Concurrent calls for identical text share one underlying attempt.
func (s *Service) Translate(ctx context.Context, text string, opts Options) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Success: false, Error: apperrors.NewInvalidInputError("source text is empty").Error()}
	}

	key := cacheKey(trimmed, opts.SourceLang, opts.TargetLang)

	if !opts.SkipCache && s.cache != nil {
		if entry, ok := s.cache.Get(key); ok {
			return Result{
				Success:     true,
				Translation: entry.Translation,
				Confidence:  entry.Confidence,
				ProviderID:  entry.ProviderID,
				FromCache:   true,
			}
		}
	}

	v, _, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.translateUncached(ctx, trimmed, key, opts), nil
	})
	return v.(Result)
}

// BatchTranslate processes inputs with a bounded concurrency window so a
// burst of scans stays within provider rate limits. Results are indexed
// like the inputs.
func (s *Service) BatchTranslate(ctx context.Context, texts []string, opts Options) []Result {
	results := make([]Result, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.window)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			results[i] = s.Translate(gctx, text, opts)
			return nil
		})
	}
	// Workers never return errors; failures live in each Result.
	_ = g.Wait()
	return results
}

// LastGoodProvider returns the id of the most recent provider that
// succeeded, or empty when none has.
func (s *Service) LastGoodProvider() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGood
}

func (s *Service) translateUncached(ctx context.Context, trimmed, key string, opts Options) Result {
	var lastErr error

	for _, provider := range s.orderedProviders() {
		for attempt := 1; attempt <= s.attempts; attempt++ {
			if attempt > 1 {
				select {
				case <-time.After(s.retryDelay):
				case <-ctx.Done():
					return Result{Success: false, Error: ctx.Err().Error()}
				}
			}

			translation, confidence, err := s.attemptProvider(ctx, provider, trimmed, opts)
			if err != nil {
				lastErr = err
				s.logger.Warn("provider attempt failed",
					"provider", provider.ID(), "attempt", attempt, "error", err)
				continue
			}

			s.mu.Lock()
			s.lastGood = provider.ID()
			s.mu.Unlock()

			if s.cache != nil {
				s.cache.Put(ctx, key, CacheEntry{
					Translation: translation,
					Confidence:  confidence,
					ProviderID:  provider.ID(),
					CreatedAt:   time.Now(),
				})
			}

			return Result{
				Success:     true,
				Translation: translation,
				Confidence:  confidence,
				ProviderID:  provider.ID(),
			}
		}
	}

	if lastErr == nil {
		lastErr = apperrors.NewInvalidInputError("no translation providers configured")
	}
	return Result{Success: false, Error: lastErr.Error()}
}

// attemptProvider runs one provider call under the per-call timeout.
// The timeout cancels the underlying request, not just the wait.
func (s *Service) attemptProvider(ctx context.Context, provider Provider, text string, opts Options) (string, float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	translation, confidence, err := provider.Translate(callCtx, text, opts.SourceLang, opts.TargetLang)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return "", 0, apperrors.NewTranslateTimeoutError(provider.ID(), s.timeout, err)
		}
		return "", 0, err
	}
	if strings.TrimSpace(translation) == "" {
		return "", 0, apperrors.NewNetworkFailedError(provider.ID(), nil)
	}
	return translation, confidence, nil
}

// orderedProviders puts the last-known-good provider first, then the
// rest in configured priority order.
func (s *Service) orderedProviders() []Provider {
	s.mu.Lock()
	lastGood := s.lastGood
	s.mu.Unlock()

	if lastGood == "" {
		return s.providers
	}

	ordered := make([]Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.ID() == lastGood {
			ordered = append(ordered, p)
			break
		}
	}
	for _, p := range s.providers {
		if p.ID() != lastGood {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func cacheKey(trimmed, sourceLang, targetLang string) string {
	return trimmed + "\x00" + sourceLang + "\x00" + targetLang
}
