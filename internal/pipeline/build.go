package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/TobiSchelling/newsjacker/internal/brief"
	"github.com/TobiSchelling/newsjacker/internal/config"
	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/fetch"
	"github.com/TobiSchelling/newsjacker/internal/llm"
	"github.com/TobiSchelling/newsjacker/internal/logging"
	"github.com/TobiSchelling/newsjacker/internal/rank"
	"github.com/TobiSchelling/newsjacker/internal/search"
)

// FromConfig wires providers from cfg into an orchestrator. A nil generator
// disables brief chaining on manual runs.
func FromConfig(ctx context.Context, cfg *config.Config, db *database.DB, gen *brief.Generator) (*Orchestrator, error) {
	provider, closers, err := SearchProvider(ctx, cfg.Search)
	if err != nil {
		return nil, err
	}

	embedder, err := Embedder(cfg)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}

	opts := Options{
		MaxResults:    cfg.Search.MaxResults,
		Concurrency:   cfg.Pipeline.Concurrency,
		TripleTimeout: cfg.Pipeline.TripleTimeout,
		BriefOnManual: cfg.Pipeline.BriefOnManual,
	}
	if cfg.Search.Enrich.Enabled {
		opts.Enricher = fetch.NewContentFetcher(cfg.Search.Enrich.MinContentLength, cfg.Search.Enrich.Timeout)
	}
	if gen != nil {
		opts.Briefer = gen
	}

	o := New(db,
		search.NewFetcher(provider, cfg.Search.Timeout, cfg.Search.Window),
		rank.New(embedder, cfg.Embedding.Timeout),
		opts,
	)
	o.closers = closers
	return o, nil
}

// SearchProvider builds the configured search providers, merged when more
// than one is listed and wrapped in the Redis cache when enabled.
func SearchProvider(ctx context.Context, cfg config.Search) (search.Provider, []func() error, error) {
	var providers []search.Provider
	for _, name := range cfg.Providers {
		switch strings.ToLower(name) {
		case "tavily":
			t := search.NewTavilyProvider(cfg.APIKeyEnv, cfg.RequestsPerMinute)
			if !t.IsConfigured() {
				logging.Warn("tavily API key not set; searches will fail", "env", cfg.APIKeyEnv)
			}
			providers = append(providers, t)
		case "rss":
			feeds := make([]search.Feed, 0, len(cfg.Feeds))
			for _, f := range cfg.Feeds {
				feeds = append(feeds, search.Feed{URL: f.URL, Name: f.Name})
			}
			providers = append(providers, search.NewFeedProvider(feeds))
		default:
			return nil, nil, fmt.Errorf("unknown search provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, nil, fmt.Errorf("no search providers configured")
	}

	var provider search.Provider = providers[0]
	if len(providers) > 1 {
		provider = search.NewMultiProvider(providers...)
	}

	var closers []func() error
	if cfg.Cache.Enabled {
		redisURL := os.Getenv(cfg.Cache.RedisURLEnv)
		if redisURL == "" {
			logging.Warn("search cache enabled but redis URL not set; caching disabled", "env", cfg.Cache.RedisURLEnv)
			return provider, nil, nil
		}
		cache, err := search.NewRedisCache(ctx, redisURL)
		if err != nil {
			logging.Warn("search cache unavailable; caching disabled", "error", err)
			return provider, nil, nil
		}
		provider = search.NewCachedProvider(provider, cache, cfg.Cache.TTL)
		closers = append(closers, cache.Close)
	}
	return provider, closers, nil
}

// Embedder builds the configured embedding provider.
func Embedder(cfg *config.Config) (llm.Embedder, error) {
	return llm.CreateEmbedder(llm.EmbedOptions{
		Provider:          cfg.Embedding.Provider,
		Model:             cfg.Embedding.Model,
		APIKeyEnv:         cfg.Embedding.APIKeyEnv,
		OllamaURL:         cfg.Embedding.OllamaURL,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
	})
}

// Completion builds the configured completion provider, or nil when none is
// available.
func Completion(cfg *config.Config) llm.Provider {
	return llm.CreateProvider(llm.Options{
		Provider:  cfg.Generation.Provider,
		Model:     cfg.Generation.Model,
		APIKeyEnv: cfg.Generation.APIKeyEnv,
		OllamaURL: cfg.Generation.OllamaURL,
		Timeout:   cfg.Generation.Timeout,
	})
}

// Generator builds the brief generator, or nil when no completion provider
// is available.
func Generator(cfg *config.Config, db *database.DB) *brief.Generator {
	provider := Completion(cfg)
	if provider == nil {
		return nil
	}
	return brief.NewGenerator(db, provider, nil)
}
