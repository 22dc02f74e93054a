// Package codehost talks to the code-host's REST API: credential rotation,
// response classification, the owner/repository crawler, and the
// clone-and-parse scraper.
package codehost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/telemetry"
)

// RateLimit is one credential's remaining call budget for the code-host's
// two rate-limited namespaces.
type RateLimit struct {
	CoreRemaining   int
	SearchRemaining int
}

// Prober reports the rate-limit status of one credential. It returns
// herr.ErrCredentialInvalid if the host rejects the credential outright.
type Prober func(ctx context.Context, token string) (RateLimit, error)

// TokenPool rotates across a fixed set of code-host credentials so a worker
// can keep making requests after the active one is exhausted or revoked.
// The zero value is not usable; construct with NewTokenPool.
//
// Callers never read the active credential without holding the read lock,
// and rotation (refresh/cleanup) holds the write lock only for the instant
// it swaps the active field — the rate-limit probes that decide the new
// active credential run unlocked.
type TokenPool struct {
	mu     sync.RWMutex
	active string
	pool   []string
	probe  Prober
}

// NewTokenPool builds a pool from tokens (must be non-empty) and immediately
// runs Cleanup to evict any that are already invalid.
func NewTokenPool(ctx context.Context, tokens []string, probe Prober) (*TokenPool, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: code-host token pool must have at least one credential", herr.ErrConfig)
	}
	pool := make([]string, len(tokens))
	copy(pool, tokens)

	tp := &TokenPool{active: pool[0], pool: pool, probe: probe}
	if err := tp.Cleanup(ctx); err != nil {
		return nil, err
	}
	return tp, nil
}

// Active returns the currently active credential.
func (p *TokenPool) Active() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Refresh rotates the active credential to the pool member with the most
// remaining core-quota calls. If the active credential's search quota is
// exhausted, Refresh only sleeps 60s and returns without switching — the
// caller is expected to retry the request that triggered the refresh. If
// every pool member is out of core quota, Refresh sleeps 5 minutes instead
// of switching to an equally-exhausted credential.
func (p *TokenPool) Refresh(ctx context.Context) error {
	active := p.Active()

	if rl, err := p.probe(ctx, active); err == nil && rl.SearchRemaining == 0 {
		telemetry.CredentialRotationsTotal.WithLabelValues("search-quota-wait").Inc()
		return sleepCtx(ctx, 60*time.Second)
	}

	snapshot := p.snapshot()
	best := ""
	bestRemaining := -1
	validFound := false
	for _, token := range snapshot {
		rl, err := p.probe(ctx, token)
		if err != nil {
			if errors.Is(err, herr.ErrCredentialInvalid) {
				continue
			}
			continue
		}
		validFound = true
		if rl.CoreRemaining > bestRemaining {
			bestRemaining = rl.CoreRemaining
			best = token
		}
	}

	if !validFound {
		return herr.NewFatal("codehost-token-pool", herr.ErrCredentialPoolEmpty)
	}

	if bestRemaining <= 0 {
		telemetry.CredentialRotationsTotal.WithLabelValues("core-quota-wait").Inc()
		return sleepCtx(ctx, 5*time.Minute)
	}

	p.mu.Lock()
	p.active = best
	p.mu.Unlock()
	telemetry.CredentialRotationsTotal.WithLabelValues("rotated").Inc()
	return nil
}

// Cleanup probes every pool member and evicts those the host reports as
// invalid. If every member is invalid, it returns a Fatal
// ErrCredentialPoolEmpty — the worker holding this pool cannot proceed.
// Otherwise the active credential is reset to the first remaining member.
func (p *TokenPool) Cleanup(ctx context.Context) error {
	snapshot := p.snapshot()

	remaining := make([]string, 0, len(snapshot))
	for _, token := range snapshot {
		_, err := p.probe(ctx, token)
		if errors.Is(err, herr.ErrCredentialInvalid) {
			continue
		}
		remaining = append(remaining, token)
	}

	if len(remaining) == 0 {
		return herr.NewFatal("codehost-token-pool", herr.ErrCredentialPoolEmpty)
	}

	p.mu.Lock()
	p.pool = remaining
	p.active = remaining[0]
	p.mu.Unlock()
	telemetry.CredentialRotationsTotal.WithLabelValues("cleanup").Inc()
	return nil
}

func (p *TokenPool) snapshot() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.pool))
	copy(out, p.pool)
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
