package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/ai"
	"github.com/spigell/ikimatch/internal/ai/gemini"
	"github.com/spigell/ikimatch/internal/ai/openai"
	"github.com/spigell/ikimatch/internal/cache"
	"github.com/spigell/ikimatch/internal/filtering"
	"github.com/spigell/ikimatch/internal/matching"
	"github.com/spigell/ikimatch/internal/profiles"
	"github.com/spigell/ikimatch/internal/secrets"
	"github.com/spigell/ikimatch/internal/server"
	"github.com/spigell/ikimatch/internal/supabase"
)

// backend is what every profile store implementation provides.
type backend interface {
	profiles.Store
	profiles.IdentityResolver
}

type application struct {
	config   *Config
	logger   *zap.Logger
	pipeline *matching.Pipeline
	checks   map[string]server.Check
	closers  []func() error
}

type buildOptions struct {
	// includeExcluded disables the moderation exclude file for this process.
	includeExcluded bool
}

func buildApp(ctx context.Context, config *Config, logger *zap.Logger, opts buildOptions) (*application, error) {
	a := &application{config: config, logger: logger, checks: map[string]server.Check{}}

	store, err := a.newStore(config.Store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("profile store: %w", err)
	}

	steps := filtering.Default()
	if opts.includeExcluded {
		filtering.DisableByName(steps, "exclude_file", "disabled by --include-excluded")
	}
	if err := filtering.Validate(&filtering.Config{
		ExcludeFile: config.Matching.ExcludeFile,
		Intents:     config.Matching.Intents,
	}, steps); err != nil {
		a.Close()
		return nil, fmt.Errorf("filters: %w", err)
	}
	for _, status := range filtering.Describe(steps) {
		logger.Debug("filter configured",
			zap.String("filter", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("scoring backend: %w", err)
	}

	var judgmentCache ai.Cache
	if config.Cache.Enabled {
		redisCache := cache.NewRedis(cache.Config{
			Address:  config.Cache.Address,
			Password: config.Cache.Password,
			DB:       config.Cache.DB,
			TTL:      config.Cache.TTL,
			Prefix:   config.Cache.Prefix,
		}, logger)
		a.closers = append(a.closers, redisCache.Close)
		a.checks["cache"] = redisCache.Ping
		judgmentCache = redisCache
	}

	scorer := ai.NewScorer(generator, judgmentCache, ai.ScorerConfig{
		Timeout:           config.AI.Timeout,
		MaxRetries:        config.AI.MaxRetries,
		Backoff:           config.AI.Backoff,
		MaxLogLength:      config.AI.MaxLogLength,
		RequestsPerMinute: config.AI.RequestsPerMinute,
	}, logger)

	pool := matching.NewPool(store, steps, logger)
	a.pipeline = matching.NewPipeline(pool, store, scorer, matching.Config{
		MinScore:      config.Matching.MinScore,
		MaxQueryRunes: config.Matching.MaxQueryLength,
	}, logger)

	logger.Info("pipeline ready",
		zap.String("store", config.Store.Backend),
		zap.String("ai_provider", generator.Provider()),
		zap.String("ai_model", generator.Model()),
		zap.Int("min_score", a.pipeline.MinScore()),
		zap.Bool("cache", config.Cache.Enabled),
	)
	return a, nil
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closing resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *application) newStore(cfg *StoreConfig) (backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "fixture":
		store, err := profiles.LoadFixture(cfg.Fixture)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		dsn, err := secrets.Load(secrets.Source{
			Name:  "postgres dsn",
			File:  cfg.Postgres.DSNFile,
			Value: cfg.Postgres.DSN,
			Env:   "DATABASE_URL",
		})
		if err != nil {
			return nil, err
		}
		store, err := profiles.OpenPostgres(profiles.PostgresConfig{
			DSN:            dsn,
			MaxConnections: cfg.Postgres.MaxConnections,
			MaxIdle:        cfg.Postgres.MaxIdle,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.checks["store"] = store.Ping
		return store, nil
	case "supabase":
		key, err := secrets.Load(secrets.Source{
			Name:  "supabase service key",
			File:  cfg.Supabase.ServiceKeyFile,
			Value: cfg.Supabase.ServiceKey,
			Env:   "SUPABASE_SERVICE_ROLE_KEY",
		})
		if err != nil {
			return nil, err
		}
		client := supabase.New(a.logger, cfg.Supabase.URL, key)
		if cfg.Supabase.PageSize > 0 {
			client.PageSize = cfg.Supabase.PageSize
		}
		if cfg.Supabase.UserAgent != "" {
			client.UserAgent = cfg.Supabase.UserAgent
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case gemini.Provider:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  cfg.Gemini.APIKeyFile,
			Value: cfg.Gemini.APIKey,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, logger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	case openai.Provider:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			File:  cfg.OpenAI.APIKeyFile,
			Value: cfg.OpenAI.APIKey,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}
		generator, err := openai.NewGenerator(openai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKey:      apiKey,
			Model:       cfg.OpenAI.Model,
			HTTPTimeout: cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	default:
		return nil, errors.New("unsupported ai provider: " + cfg.Provider)
	}
}
