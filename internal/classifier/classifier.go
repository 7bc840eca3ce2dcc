// Package classifier derives category, tags, sentiment and a summary for an inbound query.
// A remote model is tried first under a bounded retry policy; a keyword matcher answers whenever the
// model is missing, failing or unparseable, so Classify always returns a result.
package classifier

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"github.com/querydesk/backend/internal/ai"
	"github.com/querydesk/backend/internal/utils"
)

type Strategy string

const (
	StrategyModel    Strategy = "model"
	StrategyFallback Strategy = "fallback"
)

type Result struct {
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Sentiment  string   `json:"sentiment"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`
	Strategy   Strategy `json:"strategy"`
}

type Classifier struct {
	completer ai.Completer
	retry     RetryPolicy
	cache     *ttlcache.Cache[uint64, Result]
	logger    zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

type Option func(*Classifier)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Classifier) { c.retry = p.withDefaults() }
}

// WithCache keeps model results for identical title/body pairs. A zero ttl disables caching.
func WithCache(ttl time.Duration, capacity uint64) Option {
	return func(c *Classifier) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = ttlcache.New[uint64, Result](
			ttlcache.WithTTL[uint64, Result](ttl),
			ttlcache.WithCapacity[uint64, Result](capacity),
			ttlcache.WithDisableTouchOnHit[uint64, Result](),
		)
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New builds a classifier. A nil completer means no model credentials: every call uses Fallback.
func New(completer ai.Completer, opts ...Option) *Classifier {
	c := &Classifier{
		completer: completer,
		retry:     DefaultRetryPolicy(),
		logger:    zerolog.Nop(),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Classifier) Classify(ctx context.Context, title, body string) Result {
	if c.completer == nil {
		return Fallback(title, body)
	}

	key := utils.Fingerprint(title, body)
	if c.cache != nil {
		if item := c.cache.Get(key); item != nil {
			return cloneResult(item.Value())
		}
	}

	prompt := buildPrompt(title, body)
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		text, err := c.completer.Complete(ctx, prompt)
		if err != nil {
			if ctx.Err() == nil && c.retry.Retryable(err) && attempt < c.retry.MaxAttempts {
				wait := c.retry.Backoff(attempt)
				c.logger.Debug().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("classifier rate limited")
				if err := c.sleep(ctx, wait); err != nil {
					break
				}
				continue
			}
			c.logger.Warn().Err(err).Int("attempt", attempt).Str("provider", c.completer.Name()).
				Msg("classifier unavailable, using keyword fallback")
			return Fallback(title, body)
		}

		raw, err := extractJSON(text)
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("unparseable classifier output")
			continue
		}
		res := sanitize(raw)
		res.Strategy = StrategyModel
		if c.cache != nil {
			c.cache.Set(key, cloneResult(res), ttlcache.DefaultTTL)
		}
		return res
	}

	c.logger.Warn().Int("attempts", c.retry.MaxAttempts).Msg("classifier attempts exhausted, using keyword fallback")
	return Fallback(title, body)
}

func cloneResult(r Result) Result {
	r.Tags = append([]string(nil), r.Tags...)
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return r
}
