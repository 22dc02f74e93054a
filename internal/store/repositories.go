package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetRepository returns the repository with the given id, or nil if absent.
func (s *Store) GetRepository(ctx context.Context, id int64) (*Repository, error) {
	const q = `
		SELECT id, owner_id, name, url, primary_language, stargazers, size, is_fork,
		       created_at, pushed_at, updated_at, added_at, visited_at, scraped_at,
		       target_language_ratio, is_deleted, found_by_crawling
		FROM repository WHERE id = $1`

	r, err := scanRepository(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching repository %d: %w", id, err)
	}
	return &r, nil
}

func scanRepository(row interface {
	Scan(dest ...any) error
}) (Repository, error) {
	var r Repository
	err := row.Scan(
		&r.ID, &r.OwnerID, &r.Name, &r.URL, &r.PrimaryLanguage, &r.Stargazers, &r.Size, &r.IsFork,
		&r.CreatedAt, &r.PushedAt, &r.UpdatedAt, &r.AddedAt, &r.VisitedAt, &r.ScrapedAt,
		&r.TargetLanguageRatio, &r.IsDeleted, &r.FoundByCrawling,
	)
	return r, err
}

// InsertRepositoryIfNotExists inserts repo, clearing is_deleted if it had
// previously been marked deleted. It reports whether the row was newly
// created (the caller only probes the language ratio and fork parent for a
// genuinely new sighting).
func (s *Store) InsertRepositoryIfNotExists(ctx context.Context, repo Repository) (created bool, err error) {
	existing, err := s.GetRepository(ctx, repo.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if existing.IsDeleted {
			const undelete = `UPDATE repository SET is_deleted = false WHERE id = $1`
			if _, err := s.pool.Exec(ctx, undelete, repo.ID); err != nil {
				return false, fmt.Errorf("clearing is_deleted on repository %d: %w", repo.ID, err)
			}
		}
		return false, nil
	}

	const insert = `
		INSERT INTO repository (
			id, owner_id, name, url, primary_language, stargazers, size, is_fork,
			created_at, pushed_at, updated_at, target_language_ratio, is_deleted, found_by_crawling
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, $13)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, insert,
		repo.ID, repo.OwnerID, repo.Name, repo.URL, repo.PrimaryLanguage, repo.Stargazers, repo.Size, repo.IsFork,
		repo.CreatedAt, repo.PushedAt, repo.UpdatedAt, repo.TargetLanguageRatio, repo.FoundByCrawling,
	)
	if err != nil {
		return false, fmt.Errorf("inserting repository %d: %w", repo.ID, err)
	}
	return true, nil
}

// RefreshRepository updates the mutable fields of a known repository. If
// pushedAt differs from the stored value, scraped_at is cleared to NULL so
// the scraper re-parses it (the freshness-semantics invariant, §8.8).
func (s *Store) RefreshRepository(ctx context.Context, id int64, pushedAt, updatedAt time.Time, stargazers int) error {
	const q = `
		UPDATE repository SET
			pushed_at = $2,
			updated_at = $3,
			stargazers = $4,
			scraped_at = CASE WHEN pushed_at IS DISTINCT FROM $2 THEN NULL ELSE scraped_at END
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, q, id, pushedAt, updatedAt, stargazers); err != nil {
		return fmt.Errorf("refreshing repository %d: %w", id, err)
	}
	return nil
}

// SetRepositoryLanguageRatio stores the computed target-language ratio for
// a repository.
func (s *Store) SetRepositoryLanguageRatio(ctx context.Context, id int64, ratio float64) error {
	const q = `UPDATE repository SET target_language_ratio = $2 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, id, ratio); err != nil {
		return fmt.Errorf("setting language ratio on repository %d: %w", id, err)
	}
	return nil
}

// MarkRepositoryVisited sets visited_at = now.
func (s *Store) MarkRepositoryVisited(ctx context.Context, id int64) error {
	const q = `UPDATE repository SET visited_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("marking repository %d visited: %w", id, err)
	}
	return nil
}

// MarkRepositoryScraped sets scraped_at = now.
func (s *Store) MarkRepositoryScraped(ctx context.Context, id int64) error {
	const q = `UPDATE repository SET scraped_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("marking repository %d scraped: %w", id, err)
	}
	return nil
}

// MarkRepositoryDeleted sets is_deleted = true.
func (s *Store) MarkRepositoryDeleted(ctx context.Context, id int64) error {
	const q = `UPDATE repository SET is_deleted = true WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("marking repository %d deleted: %w", id, err)
	}
	return nil
}

// UnvisitedPositiveRatioRepositories returns up to limit repositories whose
// visited_at is NULL and target_language_ratio > 0, newest added_at first.
func (s *Store) UnvisitedPositiveRatioRepositories(ctx context.Context, limit int) ([]Repository, error) {
	const q = `
		SELECT id, owner_id, name, url, primary_language, stargazers, size, is_fork,
		       created_at, pushed_at, updated_at, added_at, visited_at, scraped_at,
		       target_language_ratio, is_deleted, found_by_crawling
		FROM repository
		WHERE visited_at IS NULL AND target_language_ratio > 0
		ORDER BY added_at DESC
		LIMIT $1`

	return s.queryRepositories(ctx, q, limit)
}

// UnscrapedWithForks returns every repository ready for the code-host
// scraper: scraped_at IS NULL, not deleted, with a positive language ratio.
// Forks are included deliberately — a fork may carry unique modifications.
func (s *Store) UnscrapedWithForks(ctx context.Context) ([]Repository, error) {
	const q = `
		SELECT id, owner_id, name, url, primary_language, stargazers, size, is_fork,
		       created_at, pushed_at, updated_at, added_at, visited_at, scraped_at,
		       target_language_ratio, is_deleted, found_by_crawling
		FROM repository
		WHERE scraped_at IS NULL AND NOT is_deleted AND target_language_ratio > 0
		ORDER BY added_at DESC`

	return s.queryRepositories(ctx, q)
}

// ActiveUpdatedSince returns repositories whose updated_at falls within the
// last `days` days — the working set for the CheckRepositories event.
func (s *Store) ActiveUpdatedSince(ctx context.Context, days int) ([]Repository, error) {
	const q = `
		SELECT id, owner_id, name, url, primary_language, stargazers, size, is_fork,
		       created_at, pushed_at, updated_at, added_at, visited_at, scraped_at,
		       target_language_ratio, is_deleted, found_by_crawling
		FROM repository
		WHERE updated_at >= now() - ($1 || ' days')::interval AND NOT is_deleted`

	return s.queryRepositories(ctx, q, days)
}

func (s *Store) queryRepositories(ctx context.Context, q string, args ...any) ([]Repository, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying repositories: %w", err)
	}
	defer rows.Close()

	var repos []Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning repository: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// RepositoryCount returns the number of tracked repositories, used to
// decide whether the crawler needs to bootstrap.
func (s *Store) RepositoryCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM repository`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting repositories: %w", err)
	}
	return count, nil
}

// OwnersActiveSince returns the distinct owners of repositories active in
// the last `days` days — the working set for the CheckUsers event.
func (s *Store) OwnersActiveSince(ctx context.Context, days int) ([]User, error) {
	const q = `
		SELECT DISTINCT u.id, u.login, u.url, u.is_deleted, u.added_at, u.visited_at
		FROM app_user u
		JOIN repository r ON r.owner_id = u.id
		WHERE r.updated_at >= now() - ($1 || ' days')::interval AND NOT u.is_deleted`

	rows, err := s.pool.Query(ctx, q, days)
	if err != nil {
		return nil, fmt.Errorf("querying active owners: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Login, &u.URL, &u.IsDeleted, &u.AddedAt, &u.VisitedAt); err != nil {
			return nil, fmt.Errorf("scanning active owner: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserRepositoryCount returns how many repositories we have on file for the
// given owner, used by CheckUsers to detect drift against the host's
// reported public_repos count.
func (s *Store) UserRepositoryCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	const q = `SELECT count(*) FROM repository WHERE owner_id = $1`
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting repositories for user %d: %w", userID, err)
	}
	return count, nil
}
