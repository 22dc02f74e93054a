package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/sigparse"
	"github.com/fourbyte/selectortrace/internal/store"
	"github.com/fourbyte/selectortrace/internal/telemetry"
)

const idleSleep = 5 * time.Minute

type cursorSpec struct {
	id           store.RegistryCursorID
	endpoint     string
	firstPageURL string
	kind         sigparse.Kind
}

// Fetcher maintains the two registry cursors (function and event
// signatures) and keeps them in sync per §4.6.
type Fetcher struct {
	API     *Client
	Store   *store.Store
	Logger  *slog.Logger
	BaseURL string
}

func (f *Fetcher) cursors() []cursorSpec {
	return []cursorSpec{
		{
			id:           store.RegistryCursorFunction,
			endpoint:     "signatures",
			firstPageURL: f.BaseURL + "/api/v1/signatures/?page=1",
			kind:         sigparse.KindFunction,
		},
		{
			id:           store.RegistryCursorEvent,
			endpoint:     "event-signatures",
			firstPageURL: f.BaseURL + "/api/v1/event-signatures/?page=1",
			kind:         sigparse.KindEvent,
		},
	}
}

// Run polls both cursors to convergence, sleeping idleSleep between full
// cycles, until ctx is cancelled or a fatal error occurs.
func (f *Fetcher) Run(ctx context.Context) error {
	for {
		for _, cur := range f.cursors() {
			if err := f.syncCursor(ctx, cur); err != nil {
				if herr.IsFatal(err) {
					return err
				}
				f.Logger.Error("registry sync", "endpoint", cur.endpoint, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(idleSleep):
		}
	}
}

// syncCursor walks cur's pages newest-first, inserting every signature and
// provenance edge until the first edge that already exists in the store —
// at which point the local store is in sync with the upstream and paging
// stops (S4).
func (f *Fetcher) syncCursor(ctx context.Context, cur cursorSpec) error {
	nextURL, firstRun, err := f.Store.RegistryCursor(ctx, cur.id)
	if err != nil {
		return err
	}
	if firstRun || nextURL == "" {
		nextURL = cur.firstPageURL
	}

	for nextURL != "" {
		page, err := f.API.FetchPage(ctx, nextURL)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", cur.endpoint, err)
		}
		telemetry.PagesFetchedTotal.WithLabelValues("registry-" + cur.endpoint).Inc()

		inSync := false
		for _, item := range page.Results {
			sig := sigparse.NewSignature(item.TextSignature, cur.kind, true)
			row, created, err := f.Store.UpsertSignature(ctx, sig)
			if err != nil {
				return err
			}
			if created {
				telemetry.SignaturesInsertedTotal.WithLabelValues(string(cur.kind)).Inc()
			}

			newEdge, err := f.Store.InsertRegistryProvenance(ctx, row.ID, store.Kind(cur.kind))
			if err != nil {
				return err
			}
			if !newEdge {
				inSync = true
				break
			}
			telemetry.ProvenanceEdgesInsertedTotal.WithLabelValues("registry").Inc()
		}

		if inSync || page.Next == nil {
			return f.Store.SetRegistryCursor(ctx, cur.id, cur.endpoint, nil)
		}

		nextURL = *page.Next
		if err := f.Store.SetRegistryCursor(ctx, cur.id, cur.endpoint, &nextURL); err != nil {
			return err
		}
	}
	return nil
}
