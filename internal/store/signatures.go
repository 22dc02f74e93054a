package store

import (
	"context"
	"fmt"

	"github.com/fourbyte/selectortrace/internal/sigparse"
)

// UpsertSignature inserts sig if its hash is new, or returns the existing
// row if not — the Signature insert-or-fetch-by-hash is atomic via a unique
// constraint on hash plus ON CONFLICT DO NOTHING, then a follow-up SELECT.
// It also ensures the (signature, kind) tag exists, idempotently. created
// reports whether this call is the one that inserted the row.
func (s *Store) UpsertSignature(ctx context.Context, sig sigparse.Signature) (row Signature, created bool, err error) {
	const insert = `
		INSERT INTO signature (text, hash, is_valid)
		VALUES ($1, $2, $3)
		ON CONFLICT (hash) DO NOTHING
		RETURNING id, text, hash, is_valid, added_at`

	err = s.pool.QueryRow(ctx, insert, sig.Text, sig.Hash, sig.IsValid).
		Scan(&row.ID, &row.Text, &row.Hash, &row.IsValid, &row.AddedAt)

	if err != nil {
		const fetch = `SELECT id, text, hash, is_valid, added_at FROM signature WHERE hash = $1`
		if fetchErr := s.pool.QueryRow(ctx, fetch, sig.Hash).
			Scan(&row.ID, &row.Text, &row.Hash, &row.IsValid, &row.AddedAt); fetchErr != nil {
			return Signature{}, false, fmt.Errorf("inserting signature %q: %w", sig.Hash, err)
		}
	} else {
		created = true
	}

	const tag = `
		INSERT INTO signature_kind (signature_id, kind)
		VALUES ($1, $2)
		ON CONFLICT (signature_id, kind) DO NOTHING`
	if _, err := s.pool.Exec(ctx, tag, row.ID, string(sig.Kind)); err != nil {
		return Signature{}, false, fmt.Errorf("tagging signature %d with kind %q: %w", row.ID, sig.Kind, err)
	}

	return row, created, nil
}

// InsertRepositoryProvenance idempotently links a signature to a repository
// under a kind. It reports whether a new edge was created, which the
// code-host scraper's provenance-edge counter depends on.
func (s *Store) InsertRepositoryProvenance(ctx context.Context, signatureID, repositoryID int64, kind Kind) (bool, error) {
	const q = `
		INSERT INTO signature_repository (signature_id, repository_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (signature_id, repository_id, kind) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, signatureID, repositoryID, string(kind))
	if err != nil {
		return false, fmt.Errorf("inserting repository provenance edge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertContractProvenance idempotently links a signature to a contract.
func (s *Store) InsertContractProvenance(ctx context.Context, signatureID, contractID int64, kind Kind) (bool, error) {
	const q = `
		INSERT INTO signature_contract (signature_id, contract_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (signature_id, contract_id, kind) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, signatureID, contractID, string(kind))
	if err != nil {
		return false, fmt.Errorf("inserting contract provenance edge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertRegistryProvenance idempotently marks a signature as observed in
// the third-party registry under a kind. It reports whether a new edge was
// created — the registry fetcher's steady-state sync halts (§4.6) the first
// time this returns false.
func (s *Store) InsertRegistryProvenance(ctx context.Context, signatureID int64, kind Kind) (bool, error) {
	const q = `
		INSERT INTO signature_registry (signature_id, kind)
		VALUES ($1, $2)
		ON CONFLICT (signature_id, kind) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, signatureID, string(kind))
	if err != nil {
		return false, fmt.Errorf("inserting registry provenance edge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
