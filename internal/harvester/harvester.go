// Package harvester supervises the five long-lived workers that populate
// the signature store: the code-host crawler and scraper, the registry
// fetcher, and the explorer fetcher and scraper. Any worker's fatal error
// terminates the whole group, mirroring a single misbehaving credential or
// exhausted pool making no further progress possible.
package harvester

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fourbyte/selectortrace/internal/codehost"
	"github.com/fourbyte/selectortrace/internal/config"
	"github.com/fourbyte/selectortrace/internal/explorer"
	"github.com/fourbyte/selectortrace/internal/httpclient"
	"github.com/fourbyte/selectortrace/internal/platform"
	"github.com/fourbyte/selectortrace/internal/registry"
	"github.com/fourbyte/selectortrace/internal/store"
	"github.com/fourbyte/selectortrace/internal/telemetry"
)

const userAgent = "selectortrace/1.0"

// dutyCycle spaces outbound code-host requests at least this far apart (at
// most 10 per second). It is a courtesy ceiling, not a quota guard: quota
// exhaustion is handled by the token pool's Refresh when the host answers 403.
const dutyCycle = 100 * time.Millisecond

// breakerCooldown is how long a tripped breaker refuses requests before
// letting a single probe through again.
const breakerCooldown = 30 * time.Second

// newBreaker trips after a run of consecutive non-Ok classifications, so a
// code-host or explorer endpoint that never returns 200 stops taking
// requests for its cooldown window instead of hot-looping the worker at the
// retry cadence — httpclient.GenericClassifier, in particular, retries any
// non-200 forever on its own and has no other circuit of its own.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 6
		},
	})
}

// recordHTTPRetry feeds httpclient's per-retry callback into the ambient
// "HTTP retries by classification" metric.
func recordHTTPRetry(classification string) {
	telemetry.HTTPRetriesTotal.WithLabelValues(classification).Inc()
}

// Run wires and starts every harvest worker, blocking until ctx is
// cancelled or one of them returns a fatal error.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *store.Store) error {
	tokenPool, err := codehost.NewTokenPool(ctx, cfg.CodeHostTokens, codehost.NewProber(nil, userAgent, cfg.CodeHostAPIURL))
	if err != nil {
		return err
	}

	// Redis backs a negative cache only; a harvest run can make progress
	// without it, so a connection failure is a warning, not a fatal error.
	var negCache *httpclient.NegativeCache
	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("connecting to redis, negative cache disabled", "error", err)
		negCache = httpclient.NewNegativeCache(nil, logger)
	} else {
		negCache = httpclient.NewNegativeCache(rdb, logger)
	}

	codeHostHTTP := httpclient.New(nil, rate.NewLimiter(rate.Every(dutyCycle), 1), newBreaker("codehost"), recordHTTPRetry)
	codeHostAPI := codehost.NewAPI(codeHostHTTP, tokenPool, userAgent, cfg.CodeHostAPIURL)

	crawler := &codehost.Crawler{
		API:      codeHostAPI,
		Store:    db,
		Logger:   logger.With("worker", "codehost-crawler"),
		Language: cfg.TargetLanguage,
	}
	scraper := &codehost.Scraper{
		API:       codeHostAPI,
		Store:     db,
		Logger:    logger.With("worker", "codehost-scraper"),
		CloneRoot: cfg.ScrapeCloneDir,
		Cache:     negCache,
	}

	registryClient := registry.NewClient(httpclient.New(nil, nil, nil, recordHTTPRetry))
	registryFetcher := &registry.Fetcher{
		API:     registryClient,
		Store:   db,
		Logger:  logger.With("worker", "registry-fetcher"),
		BaseURL: cfg.RegistryBaseURL,
	}

	explorerHTTP := httpclient.New(nil, nil, newBreaker("explorer"), recordHTTPRetry)
	explorerFetcher := &explorer.Fetcher{
		HTTP:    explorerHTTP,
		Store:   db,
		Logger:  logger.With("worker", "explorer-fetcher"),
		BaseURL: cfg.ExplorerBaseURL,
	}
	explorerScraper := &explorer.Scraper{
		HTTP:    explorerHTTP,
		APIKey:  cfg.ExplorerAPIToken,
		Store:   db,
		Logger:  logger.With("worker", "explorer-scraper"),
		BaseURL: cfg.ExplorerAPIURL,
		Cache:   negCache,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return crawler.Run(ctx) })
	g.Go(func() error { return scraper.Run(ctx) })
	g.Go(func() error { return registryFetcher.Run(ctx) })
	g.Go(func() error { return explorerFetcher.Run(ctx) })
	g.Go(func() error { return explorerScraper.Run(ctx) })

	return g.Wait()
}
