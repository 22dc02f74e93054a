package store

import (
	"context"
	"fmt"
)

// UpsertUser inserts a user if absent, or updates login/url if already
// known, and clears is_deleted if the resource has reappeared.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	const q = `
		INSERT INTO app_user (id, login, url, is_deleted)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (id) DO UPDATE SET
			login = EXCLUDED.login,
			url = EXCLUDED.url,
			is_deleted = false`

	if _, err := s.pool.Exec(ctx, q, u.ID, u.Login, u.URL); err != nil {
		return fmt.Errorf("upserting user %d: %w", u.ID, err)
	}
	return nil
}

// MarkUserVisited sets visited_at = now for the given user.
func (s *Store) MarkUserVisited(ctx context.Context, userID int64) error {
	const q = `UPDATE app_user SET visited_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("marking user %d visited: %w", userID, err)
	}
	return nil
}

// MarkUserDeleted sets is_deleted = true for the given user.
func (s *Store) MarkUserDeleted(ctx context.Context, userID int64) error {
	const q = `UPDATE app_user SET is_deleted = true WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("marking user %d deleted: %w", userID, err)
	}
	return nil
}

// UnvisitedOwners returns up to limit repository owners whose visited_at is
// NULL, prioritized by the newest repository added_at that references them.
func (s *Store) UnvisitedOwners(ctx context.Context, limit int) ([]User, error) {
	const q = `
		SELECT id, login, url, is_deleted, added_at, visited_at
		FROM (
			SELECT DISTINCT ON (u.id) u.id, u.login, u.url, u.is_deleted, u.added_at, u.visited_at,
			       r.added_at AS newest_repository_added_at
			FROM app_user u
			JOIN repository r ON r.owner_id = u.id
			WHERE u.visited_at IS NULL
			ORDER BY u.id, r.added_at DESC
		) owners
		ORDER BY newest_repository_added_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unvisited owners: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Login, &u.URL, &u.IsDeleted, &u.AddedAt, &u.VisitedAt); err != nil {
			return nil, fmt.Errorf("scanning unvisited owner: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// InsertStargazerEdge idempotently records that userID starred repositoryID.
func (s *Store) InsertStargazerEdge(ctx context.Context, userID, repositoryID int64) error {
	const q = `
		INSERT INTO stargazer (user_id, repository_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, repository_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, q, userID, repositoryID); err != nil {
		return fmt.Errorf("inserting stargazer edge: %w", err)
	}
	return nil
}
