package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/ikimatch/internal/logger"
	"github.com/spigell/ikimatch/internal/matching"
	"github.com/spigell/ikimatch/internal/metrics"
	"github.com/spigell/ikimatch/internal/utils"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultMaxLogLength = 200
	defaultBackoff      = 2 * time.Second
)

// Cache stores validated judgments under a content hash. Entries are immutable.
type Cache interface {
	Get(ctx context.Context, key string) ([]matching.Judgment, bool, error)
	Put(ctx context.Context, key string, judgments []matching.Judgment) error
}

type ScorerConfig struct {
	// Timeout bounds the whole Score call, retries included.
	Timeout time.Duration
	// MaxRetries is clamped to [0, 1]. Only retryable transport failures are retried.
	MaxRetries   int
	Backoff      time.Duration
	MaxLogLength int
	// RequestsPerMinute limits calls to the backend. Zero disables the limit.
	RequestsPerMinute int
}

// Scorer implements matching.Scorer on top of a Generator.
type Scorer struct {
	generator Generator
	cache     Cache
	limiter   *rate.Limiter
	logger    *zap.Logger
	system    string

	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	maxLogLen  int
}

func NewScorer(generator Generator, cache Cache, cfg ScorerConfig, log *zap.Logger) *Scorer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Scorer{
		generator:  generator,
		cache:      cache,
		limiter:    limiter,
		logger:     logger.WithCommonFields(log, generator.Provider(), generator.Model()),
		system:     SystemPrompt(),
		timeout:    cfg.Timeout,
		maxRetries: min(max(cfg.MaxRetries, 0), 1),
		backoff:    cfg.Backoff,
		maxLogLen:  cfg.MaxLogLength,
	}
}

// Score asks the backend to judge candidates against query.
func (s *Scorer) Score(ctx context.Context, query string, candidates []matching.Summary) ([]matching.Judgment, error) {
	user, err := BuildUserContent(query, candidates)
	if err != nil {
		return nil, matching.ScoringError("could not build prompt", err)
	}

	key := CacheKey(s.generator.Model(), s.system, user)
	if cached, ok := s.lookup(ctx, key); ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.generate(ctx, user)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.ID] = struct{}{}
	}

	judgments, dropped, err := ParseJudgments(raw, known)
	if err != nil {
		metrics.ScorerAttempts.WithLabelValues(s.generator.Provider(), "invalid").Inc()
		s.logger.Error("scoring response rejected",
			zap.Error(err),
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
		)
		return nil, err
	}

	for _, d := range dropped {
		metrics.DroppedJudgments.WithLabelValues(d.Reason).Inc()
		s.logger.Warn("judgment dropped",
			zap.Int("index", d.Index),
			zap.String("profile_id", d.ProfileID),
			zap.String("reason", d.Reason),
		)
	}

	s.store(ctx, key, judgments)
	return judgments, nil
}

func (s *Scorer) generate(ctx context.Context, user string) (string, error) {
	s.logger.Debug("scoring request",
		zap.Int("prompt_length", utf8.RuneCountInString(user)),
		zap.String("prompt_preview", utils.TruncateForLog(user, s.maxLogLen)),
	)

	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", contextFailure(ctx, err)
		}

		start := time.Now()
		raw, err := s.generator.GenerateContent(ctx, s.system, user)
		if err == nil {
			metrics.ScorerAttempts.WithLabelValues(s.generator.Provider(), "ok").Inc()
			s.logger.Debug("scoring response",
				zap.Int("attempt", attempt+1),
				zap.Duration("took", time.Since(start)),
				zap.Int("response_length", utf8.RuneCountInString(raw)),
				zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
			)
			return raw, nil
		}

		err = classifyFailure(ctx, err)
		metrics.ScorerAttempts.WithLabelValues(s.generator.Provider(), string(matching.KindOf(err))).Inc()

		if !matching.IsRetryable(err) || attempt >= s.maxRetries || ctx.Err() != nil {
			return "", err
		}

		s.logger.Warn("scoring backend failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", s.backoff),
			zap.Error(err),
		)
		if waitErr := utils.WaitFor(ctx, s.backoff); waitErr != nil {
			return "", contextFailure(ctx, waitErr)
		}
	}
}

// classifyFailure makes sure every generator error carries a kind.
func classifyFailure(ctx context.Context, err error) error {
	if matching.KindOf(err) != "" {
		return err
	}
	if ctx.Err() != nil {
		return contextFailure(ctx, err)
	}
	return matching.TransportError("scoring backend failed", false, err)
}

func contextFailure(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return matching.TransportError("scoring timed out", true, err)
	}
	return matching.TransportError("request cancelled", false, err)
}

func (s *Scorer) lookup(ctx context.Context, key string) ([]matching.Judgment, bool) {
	if s.cache == nil {
		return nil, false
	}
	judgments, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("judgment cache lookup failed", zap.Error(err))
		return nil, false
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		s.logger.Debug("judgment cache hit", zap.String("key", key))
		return judgments, true
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
}

func (s *Scorer) store(ctx context.Context, key string, judgments []matching.Judgment) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, key, judgments); err != nil {
		s.logger.Warn("judgment cache write failed", zap.Error(err))
	}
}

// CacheKey hashes everything that determines the model's answer.
func CacheKey(model, system, user string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(user))
	return hex.EncodeToString(h.Sum(nil))
}
