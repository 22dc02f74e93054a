package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/httpclient"
	"github.com/fourbyte/selectortrace/internal/sigparse"
	"github.com/fourbyte/selectortrace/internal/store"
	"github.com/fourbyte/selectortrace/internal/telemetry"
)

const scrapeEvery = 5 * time.Minute

// Scraper fetches the ABI of every unvisited contract, extracts its
// signatures, and records provenance (§4.7).
type Scraper struct {
	HTTP    *httpclient.Client
	APIKey  string
	Store   *store.Store
	Logger  *slog.Logger
	BaseURL string
	Cache   *httpclient.NegativeCache
}

// Run scrapes every unvisited contract, then sleeps scrapeEvery, until ctx
// is cancelled or a fatal error occurs.
func (s *Scraper) Run(ctx context.Context) error {
	for {
		contracts, err := s.Store.UnvisitedContracts(ctx)
		if err != nil {
			return err
		}

		for _, c := range contracts {
			if err := s.scrapeOne(ctx, c); err != nil {
				if herr.IsFatal(err) {
					return err
				}
				s.Logger.Error("explorer scrape", "contract", c.Address, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(scrapeEvery):
		}
	}
}

// scrapeOne fetches c's ABI and inserts its signatures and provenance
// edges. An unverified-source error is terminal for c alone: it is
// swallowed here, c is marked scraped, and the caller moves on.
func (s *Scraper) scrapeOne(ctx context.Context, c store.Contract) error {
	cacheKey := "explorer:contract:" + c.Address
	if s.Cache.Recent(ctx, cacheKey) {
		return s.Store.MarkContractScraped(ctx, c.ID)
	}

	abi, err := s.fetchABI(ctx, c.Address)
	if err != nil {
		if errors.Is(err, herr.ErrResourceUnavailable) {
			s.Cache.MarkUnavailable(ctx, cacheKey)
			return s.Store.MarkContractScraped(ctx, c.ID)
		}
		return err
	}

	sigs, err := sigparse.FromABI(abi)
	if err != nil {
		s.Logger.Warn("explorer scrape: unparsable ABI", "contract", c.Address, "error", err)
		return s.Store.MarkContractScraped(ctx, c.ID)
	}

	for _, sig := range sigs {
		row, created, err := s.Store.UpsertSignature(ctx, sig)
		if err != nil {
			return err
		}
		if created {
			telemetry.SignaturesInsertedTotal.WithLabelValues(string(sig.Kind)).Inc()
		}

		newEdge, err := s.Store.InsertContractProvenance(ctx, row.ID, c.ID, store.Kind(sig.Kind))
		if err != nil {
			return err
		}
		if newEdge {
			telemetry.ProvenanceEdgesInsertedTotal.WithLabelValues("explorer").Inc()
		}
	}

	return s.Store.MarkContractScraped(ctx, c.ID)
}

// fetchABI requests the contract's ABI through the explorer API's getabi
// action at s.BaseURL (the API endpoint itself, e.g. ".../api") and returns
// the raw ABI JSON text.
func (s *Scraper) fetchABI(ctx context.Context, address string) ([]byte, error) {
	url := fmt.Sprintf("%s?module=contract&action=getabi&address=%s", s.BaseURL, address)

	resp, err := s.HTTP.Do(ctx, Classifier{APIKey: s.APIKey}, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decoding ABI envelope for %s: %v", herr.ErrUpstreamSemantic, address, err)
	}

	var abiText string
	if err := json.Unmarshal(env.Result, &abiText); err != nil {
		return nil, fmt.Errorf("%w: ABI result for %s is not a string", herr.ErrUpstreamSemantic, address)
	}

	return []byte(abiText), nil
}
