package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RegistryCursorID identifies one of the registry's two paginated
// signature-kind endpoints.
type RegistryCursorID int16

const (
	RegistryCursorFunction RegistryCursorID = 1
	RegistryCursorEvent    RegistryCursorID = 2
)

// RegistryCursor returns the stored next-page URL for the given cursor, and
// whether this is the endpoint's first-ever run (no row yet).
func (s *Store) RegistryCursor(ctx context.Context, id RegistryCursorID) (nextPageURL string, firstRun bool, err error) {
	const q = `SELECT next_page_url FROM registry_cursor WHERE id = $1`

	var next *string
	err = s.pool.QueryRow(ctx, q, id).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", true, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading registry cursor %d: %w", id, err)
	}
	if next == nil {
		return "", false, nil
	}
	return *next, false, nil
}

// SetRegistryCursor persists the next page URL to resume from (or NULL once
// the endpoint has been fully paginated and steady-state sync has begun).
func (s *Store) SetRegistryCursor(ctx context.Context, id RegistryCursorID, endpoint string, nextPageURL *string) error {
	const q = `
		INSERT INTO registry_cursor (id, endpoint, next_page_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET next_page_url = EXCLUDED.next_page_url`

	if _, err := s.pool.Exec(ctx, q, id, endpoint, nextPageURL); err != nil {
		return fmt.Errorf("setting registry cursor %d: %w", id, err)
	}
	return nil
}
