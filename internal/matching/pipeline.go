package matching

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/logger"
	"github.com/spigell/ikimatch/internal/metrics"
	"github.com/spigell/ikimatch/internal/profiles"
)

const (
	instrumentationName = "github.com/spigell/ikimatch/internal/matching"

	DefaultMaxQueryRunes  = 500
	DefaultRecommendLimit = 5
)

type Config struct {
	// MinScore may raise the inclusion threshold above MinScore, never lower it.
	MinScore      int
	MaxQueryRunes int
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Pipeline runs match searches. It is safe for concurrent use.
type Pipeline struct {
	pool     *Pool
	identity profiles.IdentityResolver
	scorer   Scorer
	logger   *zap.Logger
	tracer   trace.Tracer

	minScore      int
	maxQueryRunes int
}

func NewPipeline(pool *Pool, identity profiles.IdentityResolver, scorer Scorer, cfg Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	maxQuery := cfg.MaxQueryRunes
	if maxQuery <= 0 {
		maxQuery = DefaultMaxQueryRunes
	}

	return &Pipeline{
		pool:          pool,
		identity:      identity,
		scorer:        scorer,
		logger:        log,
		tracer:        tp.Tracer(instrumentationName),
		minScore:      max(cfg.MinScore, MinScore),
		maxQueryRunes: maxQuery,
	}
}

// MinScore returns the effective inclusion threshold.
func (p *Pipeline) MinScore() int {
	return p.minScore
}

type requestIDKey struct{}

// WithRequestID stores the id used to correlate log lines of one search.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID or a fresh one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// FindMatches ranks the requester's candidate pool against query.
func (p *Pipeline) FindMatches(ctx context.Context, query, requesterID string) (result *Result, err error) {
	start := time.Now()
	log := logger.WithRequest(p.logger, RequestID(ctx), requesterID)

	ctx, span := p.tracer.Start(ctx, "matching.FindMatches", trace.WithAttributes(
		attribute.String("ikimatch.requester_id", requesterID),
	))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			log.Warn("search failed", zap.String("code", outcome), zap.Error(err))
		} else {
			span.SetAttributes(attribute.Int("ikimatch.matches", len(result.Raw)))
			log.Info("search finished",
				zap.Int("matches", len(result.Raw)),
				zap.Int("perfect", len(result.Tiers.Perfect)),
				zap.Int("strong", len(result.Tiers.Strong)),
				zap.Int("potential", len(result.Tiers.Potential)),
				zap.Duration("took", time.Since(start)),
			)
		}
		span.End()
		metrics.Searches.WithLabelValues(outcome).Inc()
		metrics.SearchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ValidationError("query must not be empty")
	}
	if utf8.RuneCountInString(query) > p.maxQueryRunes {
		return nil, ValidationError("query is too long")
	}

	if err := p.resolve(ctx, requesterID); err != nil {
		return nil, err
	}

	pool, err := p.loadPool(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	metrics.PoolSize.Observe(float64(len(pool)))
	if len(pool) == 0 {
		log.Info("candidate pool is empty, skipping scoring")
		return &Result{Raw: []RankedMatch{}, Tiers: Partition(nil)}, nil
	}

	judgments, err := p.score(ctx, query, pool)
	if err != nil {
		return nil, err
	}

	ranked, dropped := Assemble(judgments, pool, p.minScore)
	for _, d := range dropped {
		metrics.DroppedJudgments.WithLabelValues(d.Reason).Inc()
		if d.Reason == ReasonBelowThreshold {
			continue
		}
		log.Warn("judgment dropped during assembly",
			zap.Int("index", d.Index),
			zap.String("profile_id", d.ProfileID),
			zap.String("reason", d.Reason),
		)
	}

	return &Result{Raw: ranked, Tiers: Partition(ranked)}, nil
}

// Recommend returns the first limit eligible candidates without scoring them.
func (p *Pipeline) Recommend(ctx context.Context, requesterID string, limit int) ([]Snapshot, error) {
	ctx, span := p.tracer.Start(ctx, "matching.Recommend")
	defer span.End()

	if limit <= 0 {
		limit = DefaultRecommendLimit
	}
	if err := p.resolve(ctx, requesterID); err != nil {
		span.SetStatus(codes.Error, string(KindOf(err)))
		return nil, err
	}

	pool, err := p.loadPool(ctx, requesterID)
	if err != nil {
		span.SetStatus(codes.Error, string(KindOf(err)))
		return nil, err
	}

	out := make([]Snapshot, 0, min(limit, len(pool)))
	for _, candidate := range pool[:min(limit, len(pool))] {
		out = append(out, Snap(candidate))
	}
	return out, nil
}

func (p *Pipeline) resolve(ctx context.Context, requesterID string) error {
	if p.identity == nil {
		return nil
	}
	if err := p.identity.Resolve(ctx, requesterID); err != nil {
		if errors.Is(err, profiles.ErrUnknownRequester) || errors.Is(err, profiles.ErrInvalidRequester) {
			return AuthError(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return TransportError("request cancelled", false, ctxErr)
		}
		return StoreError(err)
	}
	return nil
}

func (p *Pipeline) loadPool(ctx context.Context, requesterID string) ([]*profiles.Profile, error) {
	ctx, span := p.tracer.Start(ctx, "matching.LoadPool")
	defer span.End()

	pool, err := p.pool.Load(ctx, requesterID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pool load failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("ikimatch.pool_size", len(pool)))
	return pool, nil
}

func (p *Pipeline) score(ctx context.Context, query string, pool []*profiles.Profile) ([]Judgment, error) {
	ctx, span := p.tracer.Start(ctx, "matching.Score", trace.WithAttributes(
		attribute.Int("ikimatch.candidates", len(pool)),
	))
	defer span.End()

	judgments, err := p.scorer.Score(ctx, query, SummarizeAll(pool))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring failed")
		if KindOf(err) == "" {
			// Scorers are expected to classify their errors.
			return nil, TransportError("scoring backend failed", false, err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("ikimatch.judgments", len(judgments)))
	return judgments, nil
}
