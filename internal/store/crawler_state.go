package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetOrInitCrawlerState returns the singleton crawler-state row, creating
// it (all three timestamps set to the code-host epoch) if it doesn't yet
// exist.
func (s *Store) GetOrInitCrawlerState(ctx context.Context, epoch time.Time) (CrawlerState, error) {
	const q = `SELECT last_repository_search, last_repository_check, last_user_check FROM crawler_state WHERE id = 1`

	var st CrawlerState
	err := s.pool.QueryRow(ctx, q).Scan(&st.LastRepositorySearch, &st.LastRepositoryCheck, &st.LastUserCheck)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return CrawlerState{}, fmt.Errorf("loading crawler state: %w", err)
	}

	const insert = `
		INSERT INTO crawler_state (id, last_repository_search, last_repository_check, last_user_check)
		VALUES (1, $1, $1, $1)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, insert, epoch); err != nil {
		return CrawlerState{}, fmt.Errorf("initializing crawler state: %w", err)
	}

	return CrawlerState{LastRepositorySearch: epoch, LastRepositoryCheck: epoch, LastUserCheck: epoch}, nil
}

// SetLastRepositorySearch updates the crawler state's repository-search
// timestamp, advancing the SearchRepositories event's schedule.
func (s *Store) SetLastRepositorySearch(ctx context.Context, t time.Time) error {
	const q = `UPDATE crawler_state SET last_repository_search = $1 WHERE id = 1`
	if _, err := s.pool.Exec(ctx, q, t); err != nil {
		return fmt.Errorf("updating last_repository_search: %w", err)
	}
	return nil
}

// SetLastRepositoryCheck updates the CheckRepositories event's schedule.
func (s *Store) SetLastRepositoryCheck(ctx context.Context, t time.Time) error {
	const q = `UPDATE crawler_state SET last_repository_check = $1 WHERE id = 1`
	if _, err := s.pool.Exec(ctx, q, t); err != nil {
		return fmt.Errorf("updating last_repository_check: %w", err)
	}
	return nil
}

// SetLastUserCheck updates the CheckUsers event's schedule.
func (s *Store) SetLastUserCheck(ctx context.Context, t time.Time) error {
	const q = `UPDATE crawler_state SET last_user_check = $1 WHERE id = 1`
	if _, err := s.pool.Exec(ctx, q, t); err != nil {
		return fmt.Errorf("updating last_user_check: %w", err)
	}
	return nil
}
