package codehost

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/httpclient"
	"github.com/fourbyte/selectortrace/internal/sigparse"
	"github.com/fourbyte/selectortrace/internal/store"
	"github.com/fourbyte/selectortrace/internal/telemetry"
)

const scraperIdleSleep = 5 * time.Minute

// sourceExtensions classifies a file by extension into a parse strategy.
// ".json" is treated as an ABI document; the rest are source-text.
var sourceExtensions = map[string]bool{
	".sol": true,
}

// Scraper clones every unscraped, non-deleted, positive-language-ratio
// repository (§4.4), walks its tree, and records the signatures it finds.
type Scraper struct {
	API       *API
	Store     *store.Store
	Logger    *slog.Logger
	CloneRoot string
	Cache     *httpclient.NegativeCache
}

// Run loops forever, scraping the full work queue and sleeping
// scraperIdleSleep between passes, until ctx is cancelled.
func (s *Scraper) Run(ctx context.Context) error {
	for {
		repos, err := s.Store.UnscrapedWithForks(ctx)
		if err != nil {
			return fmt.Errorf("code-host scraper: %w", err)
		}

		for _, repo := range repos {
			if err := s.scrapeOne(ctx, repo); err != nil {
				if herr.IsFatal(err) {
					return err
				}
				s.Logger.Error("scraping repository", "repository_id", repo.ID, "error", err)
			}
		}

		if err := sleepCtx(ctx, scraperIdleSleep); err != nil {
			return nil
		}
	}
}

func (s *Scraper) scrapeOne(ctx context.Context, repo store.Repository) error {
	dir := s.cloneDir(repo.ID)
	defer os.RemoveAll(dir)

	if err := s.clone(ctx, repo, dir); err != nil {
		cacheKey := "github:repo:" + ownerLoginOf(repo) + "/" + repo.Name
		if s.Cache.Recent(ctx, cacheKey) {
			telemetry.RepositoriesMarkedDeletedTotal.Inc()
			return s.Store.MarkRepositoryDeleted(ctx, repo.ID)
		}

		_, _, probeErr := s.API.GetRepository(ctx, ownerLoginOf(repo), repo.Name, time.Time{})
		if probeErr != nil && errors.Is(probeErr, herr.ErrResourceUnavailable) {
			s.Cache.MarkUnavailable(ctx, cacheKey)
			telemetry.RepositoriesMarkedDeletedTotal.Inc()
			return s.Store.MarkRepositoryDeleted(ctx, repo.ID)
		}
		// Clone failed for a reason other than the repository vanishing
		// (network hiccup, host outage): mark it scraped anyway so the queue
		// moves on instead of spinning on the same failure. The scraper's
		// queue only selects scraped_at IS NULL, so the repository is cloned
		// again only after a refresh clears scraped_at (a changed pushed_at).
		return s.Store.MarkRepositoryScraped(ctx, repo.ID)
	}

	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return s.scrapeFile(ctx, repo.ID, path)
	}); err != nil {
		return fmt.Errorf("walking clone of repository %d: %w", repo.ID, err)
	}

	return s.Store.MarkRepositoryScraped(ctx, repo.ID)
}

// cloneDir builds a sandboxed destination path for repository id, neutralizing
// a leading dash so no CLI argument parser downstream mistakes it for a flag.
func (s *Scraper) cloneDir(id int64) string {
	name := fmt.Sprintf("repo-%d", id)
	if strings.HasPrefix(name, "-") {
		name = "_" + name
	}
	return filepath.Join(s.CloneRoot, name)
}

func (s *Scraper) clone(ctx context.Context, repo store.Repository, dir string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          repo.URL + ".git",
		SingleBranch: true,
		Depth:        1,
		Auth: &githttp.BasicAuth{
			Username: "x-access-token",
			Password: "throwaway",
		},
	})
	if err != nil {
		return fmt.Errorf("cloning repository %d: %w", repo.ID, err)
	}
	return nil
}

func (s *Scraper) scrapeFile(ctx context.Context, repositoryID int64, path string) error {
	ext := strings.ToLower(filepath.Ext(path))

	var sigs []sigparse.Signature
	switch {
	case ext == ".json":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil //nolint:nilerr // an unreadable file yields no signatures, not a fatal error
		}
		parsed, err := sigparse.FromABI(content)
		if err != nil {
			return nil //nolint:nilerr // parse errors are swallowed per ABI file
		}
		sigs = parsed

	case sourceExtensions[ext]:
		content, err := os.ReadFile(path)
		if err != nil {
			return nil //nolint:nilerr // an unreadable file yields no signatures, not a fatal error
		}
		sigs = sigparse.FromSource(string(content))

	default:
		return nil
	}

	for _, sig := range sigs {
		row, created, err := s.Store.UpsertSignature(ctx, sig)
		if err != nil {
			return err
		}
		if created {
			telemetry.SignaturesInsertedTotal.WithLabelValues(string(sig.Kind)).Inc()
		}
		newEdge, err := s.Store.InsertRepositoryProvenance(ctx, row.ID, repositoryID, store.Kind(sig.Kind))
		if err != nil {
			return err
		}
		if newEdge {
			telemetry.ProvenanceEdgesInsertedTotal.WithLabelValues("github").Inc()
		}
	}
	return nil
}
