package codehost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/store"
	"github.com/fourbyte/selectortrace/internal/telemetry"
)

const (
	batchSize             = 50
	maxForkParentDepth    = 2
	ratioProbeCutoffYear  = 2018
	searchRepositoryEvery = 24 * time.Hour
	checkRepositoryEvery  = 21 * 24 * time.Hour
	checkUserEvery        = 21 * 24 * time.Hour
	activeWindowDays      = 180
)

var codeHostEpoch = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)

// Crawler maintains the local view of every repository in the target
// language and its owners, per §4.3: a bootstrap sweep, then a
// single-threaded loop alternating scheduled events with crawling
// iterations.
type Crawler struct {
	API      *API
	Store    *store.Store
	Logger   *slog.Logger
	Language string

	events chan crawlEvent
}

type crawlEvent struct {
	name string
	run  func(ctx context.Context) error
}

// Run blocks, bootstrapping if necessary and then alternating scheduled
// events with crawling iterations, until ctx is cancelled or a fatal error
// occurs.
func (c *Crawler) Run(ctx context.Context) error {
	count, err := c.Store.RepositoryCount(ctx)
	if err != nil {
		return fmt.Errorf("code-host crawler: %w", err)
	}
	if count == 0 {
		if err := c.bootstrap(ctx); err != nil {
			return fmt.Errorf("code-host crawler bootstrap: %w", err)
		}
	}

	state, err := c.Store.GetOrInitCrawlerState(ctx, codeHostEpoch)
	if err != nil {
		return fmt.Errorf("code-host crawler: %w", err)
	}

	c.events = make(chan crawlEvent, 3)
	go c.scheduleEvent(ctx, "search-repositories", state.LastRepositorySearch, searchRepositoryEvery, c.runSearchRepositories)
	go c.scheduleEvent(ctx, "check-repositories", state.LastRepositoryCheck, checkRepositoryEvery, c.runCheckRepositories)
	go c.scheduleEvent(ctx, "check-users", state.LastUserCheck, checkUserEvery, c.runCheckUsers)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			if err := ev.run(ctx); err != nil {
				if herr.IsFatal(err) {
					return herr.NewFatal("code-host-crawler", fmt.Errorf("%s: %w", ev.name, err))
				}
				c.Logger.Error("code-host crawler event", "event", ev.name, "error", err)
			}
		default:
			if err := c.crawlIteration(ctx); err != nil {
				if herr.IsFatal(err) {
					return err
				}
				c.Logger.Error("code-host crawling iteration", "error", err)
			}
		}
	}
}

// scheduleEvent posts ev onto c.events every period, starting from the next
// due time after lastRun, until ctx is cancelled.
func (c *Crawler) scheduleEvent(ctx context.Context, name string, lastRun time.Time, period time.Duration, run func(ctx context.Context) error) {
	if d := time.Until(lastRun.Add(period)); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	c.events <- crawlEvent{name: name, run: run}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.events <- crawlEvent{name: name, run: run}
		}
	}
}

func (c *Crawler) bootstrap(ctx context.Context) error {
	for day := codeHostEpoch; !day.After(time.Now().UTC()); day = day.AddDate(0, 0, 1) {
		repos, err := c.API.SearchRepositoriesCreatedOn(ctx, c.Language, day)
		if err != nil {
			if herr.IsFatal(err) {
				return err
			}
			c.Logger.Error("bootstrap search", "day", day.Format("2006-01-02"), "error", err)
			continue
		}
		for _, r := range repos {
			if err := c.insertDiscoveredRepository(ctx, r, 0); err != nil && herr.IsFatal(err) {
				return err
			}
		}
	}
	return nil
}

func (c *Crawler) runSearchRepositories(ctx context.Context) error {
	now := time.Now().UTC()
	state, err := c.Store.GetOrInitCrawlerState(ctx, codeHostEpoch)
	if err != nil {
		return err
	}

	for day := state.LastRepositorySearch; !day.After(now); day = day.AddDate(0, 0, 1) {
		created, err := c.API.SearchRepositoriesCreatedOn(ctx, c.Language, day)
		if err != nil {
			return err
		}
		updated, err := c.API.SearchRepositoriesUpdatedOn(ctx, c.Language, day)
		if err != nil {
			return err
		}
		for _, r := range append(created, updated...) {
			if err := c.refreshOrInsertRepository(ctx, r); err != nil {
				return err
			}
		}
	}
	return c.Store.SetLastRepositorySearch(ctx, now)
}

func (c *Crawler) runCheckRepositories(ctx context.Context) error {
	now := time.Now().UTC()
	repos, err := c.Store.ActiveUpdatedSince(ctx, activeWindowDays)
	if err != nil {
		return err
	}
	for _, r := range repos {
		fresh, changed, err := c.API.GetRepository(ctx, ownerLoginOf(r), r.Name, r.UpdatedAt)
		if err != nil {
			if errors.Is(err, herr.ErrResourceUnavailable) {
				if merr := c.Store.MarkRepositoryDeleted(ctx, r.ID); merr != nil {
					return merr
				}
				telemetry.RepositoriesMarkedDeletedTotal.Inc()
				continue
			}
			return err
		}
		if !changed {
			continue
		}
		if err := c.Store.RefreshRepository(ctx, r.ID, fresh.PushedAt, fresh.UpdatedAt, fresh.Stargazers); err != nil {
			return err
		}
	}
	return c.Store.SetLastRepositoryCheck(ctx, now)
}

func (c *Crawler) runCheckUsers(ctx context.Context) error {
	now := time.Now().UTC()
	owners, err := c.Store.OwnersActiveSince(ctx, activeWindowDays)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		remote, err := c.API.GetUser(ctx, owner.Login)
		if err != nil {
			if errors.Is(err, herr.ErrResourceUnavailable) {
				if merr := c.Store.MarkUserDeleted(ctx, owner.ID); merr != nil {
					return merr
				}
				continue
			}
			return err
		}

		localCount, err := c.Store.UserRepositoryCount(ctx, owner.ID)
		if err != nil {
			return err
		}
		if int64(remote.ReposCount) == localCount {
			continue
		}

		owned, err := c.API.OwnedRepositories(ctx, owner.Login)
		if err != nil {
			return err
		}
		for _, r := range owned {
			if err := c.insertDiscoveredRepository(ctx, r, 0); err != nil {
				return err
			}
		}
	}
	return c.Store.SetLastUserCheck(ctx, now)
}

// crawlIteration performs one bounded unit of the steady-state crawl: visit
// unvisited owners first, falling back to unvisited positive-ratio
// repositories once no owners remain.
func (c *Crawler) crawlIteration(ctx context.Context) error {
	owners, err := c.Store.UnvisitedOwners(ctx, batchSize)
	if err != nil {
		return err
	}
	if len(owners) > 0 {
		for _, owner := range owners {
			if err := c.visitOwner(ctx, owner); err != nil && herr.IsFatal(err) {
				return err
			}
		}
		return nil
	}

	repos, err := c.Store.UnvisitedPositiveRatioRepositories(ctx, batchSize)
	if err != nil {
		return err
	}
	for _, repo := range repos {
		if err := c.visitRepository(ctx, repo); err != nil && herr.IsFatal(err) {
			return err
		}
	}
	return nil
}

func (c *Crawler) visitOwner(ctx context.Context, owner store.User) error {
	owned, err := c.API.OwnedRepositories(ctx, owner.Login)
	if err != nil {
		if errors.Is(err, herr.ErrResourceUnavailable) {
			return c.Store.MarkUserDeleted(ctx, owner.ID)
		}
		return err
	}
	starred, err := c.API.StarredRepositories(ctx, owner.Login)
	if err != nil {
		if !errors.Is(err, herr.ErrResourceUnavailable) {
			return err
		}
	}

	for _, r := range append(owned, starred...) {
		if err := c.insertDiscoveredRepository(ctx, r, 0); err != nil {
			return err
		}
	}
	return c.Store.MarkUserVisited(ctx, owner.ID)
}

func (c *Crawler) visitRepository(ctx context.Context, repo store.Repository) error {
	stargazers, err := c.API.Stargazers(ctx, ownerLoginOf(repo), repo.Name)
	if err != nil {
		if errors.Is(err, herr.ErrResourceUnavailable) {
			telemetry.RepositoriesMarkedDeletedTotal.Inc()
			return c.Store.MarkRepositoryDeleted(ctx, repo.ID)
		}
		return err
	}

	for _, sg := range stargazers {
		if err := c.Store.UpsertUser(ctx, store.User{ID: sg.ID, Login: sg.Login, URL: sg.URL}); err != nil {
			return err
		}
		owned, err := c.API.OwnedRepositories(ctx, sg.Login)
		if err == nil {
			for _, r := range owned {
				if err := c.insertDiscoveredRepository(ctx, r, 0); err != nil {
					return err
				}
			}
		}
		starred, err := c.API.StarredRepositories(ctx, sg.Login)
		if err == nil {
			for _, r := range starred {
				if err := c.insertDiscoveredRepository(ctx, r, 0); err != nil {
					return err
				}
			}
		}
		if err := c.Store.InsertStargazerEdge(ctx, sg.ID, repo.ID); err != nil {
			return err
		}
		if err := c.Store.MarkUserVisited(ctx, sg.ID); err != nil {
			return err
		}
	}

	return c.Store.MarkRepositoryVisited(ctx, repo.ID)
}

// insertDiscoveredRepository applies the insertion rules of §4.3: insert
// the owner, insert the repository (undeleting if it had been marked
// deleted), probe the language ratio unless the repository predates the
// cutoff, and recursively insert a fork's parent up to maxForkParentDepth.
// The parent's other forks are not enumerated, and a fork's ratio is never
// inherited from its parent: each inserted repository is probed (or left at
// the default) by the cutoff rule above on its own.
func (c *Crawler) insertDiscoveredRepository(ctx context.Context, r Repo, depth int) error {
	if err := c.Store.UpsertUser(ctx, store.User{ID: r.OwnerID, Login: r.OwnerLogin, URL: ""}); err != nil {
		return err
	}

	lang := r.PrimaryLanguage
	repoRow := store.Repository{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Name:            r.Name,
		URL:             r.URL,
		PrimaryLanguage: &lang,
		Stargazers:      r.Stargazers,
		Size:            r.Size,
		IsFork:          r.IsFork,
		CreatedAt:       r.CreatedAt,
		PushedAt:        r.PushedAt,
		UpdatedAt:       r.UpdatedAt,
		FoundByCrawling: true,
	}

	created, err := c.Store.InsertRepositoryIfNotExists(ctx, repoRow)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	if r.CreatedAt.Year() <= 0 || !r.CreatedAt.After(time.Date(ratioProbeCutoffYear, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		// Historical signal is too sparse before the cutoff to justify the
		// API spend; leave target_language_ratio at its default.
	} else {
		breakdown, err := c.API.LanguageBreakdown(ctx, r.OwnerLogin, r.Name)
		if err != nil {
			if !errors.Is(err, herr.ErrResourceUnavailable) {
				return err
			}
		} else {
			ratio := languageRatio(breakdown, c.Language)
			if err := c.Store.SetRepositoryLanguageRatio(ctx, r.ID, ratio); err != nil {
				return err
			}
		}
	}

	if r.IsFork && r.ParentID != nil && depth < maxForkParentDepth {
		parent, err := c.API.GetRepositoryByID(ctx, *r.ParentID)
		if err != nil {
			if !errors.Is(err, herr.ErrResourceUnavailable) {
				return err
			}
		} else if err := c.insertDiscoveredRepository(ctx, parent, depth+1); err != nil {
			return err
		}
	}

	return nil
}

func (c *Crawler) refreshOrInsertRepository(ctx context.Context, r Repo) error {
	existing, err := c.Store.GetRepository(ctx, r.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return c.insertDiscoveredRepository(ctx, r, 0)
	}
	if !existing.PushedAt.Equal(r.PushedAt) {
		return c.Store.RefreshRepository(ctx, r.ID, r.PushedAt, r.UpdatedAt, r.Stargazers)
	}
	return nil
}

// languageRatio computes bytes(target) / sum(bytes(all)), 0 if target is
// absent or the breakdown is empty.
func languageRatio(breakdown map[string]int64, target string) float64 {
	if len(breakdown) == 0 {
		return 0
	}
	var total, targetBytes int64
	for lang, bytes := range breakdown {
		total += bytes
		if lang == target {
			targetBytes = bytes
		}
	}
	if total == 0 {
		return 0
	}
	return float64(targetBytes) / float64(total)
}

// ownerLoginOf recovers the owner login from a repository's html_url
// (".../{owner}/{name}") — the stored row only keeps owner_id, but the
// code-host's conditional-request and stargazer endpoints are addressed by
// login, not numeric id.
func ownerLoginOf(r store.Repository) string {
	parts := strings.Split(strings.TrimRight(r.URL, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
