package store

import (
	"context"
	"fmt"
)

// SignaturesByTextPrefix returns valid signatures whose text starts with
// prefix, optionally restricted to kind, paged.
func (s *Store) SignaturesByTextPrefix(ctx context.Context, prefix string, kind *Kind, page, pageSize int) ([]Signature, int64, error) {
	where := `s.text LIKE $1 AND s.is_valid`
	args := []any{prefix + "%"}
	if kind != nil {
		where += fmt.Sprintf(" AND sk.kind = $%d", len(args)+1)
		args = append(args, string(*kind))
	}
	return s.pagedSignatureQuery(ctx, where, args, page, pageSize)
}

// SignaturesByHashPrefix returns valid signatures whose hash starts with
// prefix (already normalized: "0x" stripped by the caller), optionally
// restricted to kind, paged.
func (s *Store) SignaturesByHashPrefix(ctx context.Context, prefix string, kind *Kind, page, pageSize int) ([]Signature, int64, error) {
	where := `s.hash LIKE $1 AND s.is_valid`
	args := []any{prefix + "%"}
	if kind != nil {
		where += fmt.Sprintf(" AND sk.kind = $%d", len(args)+1)
		args = append(args, string(*kind))
	}
	return s.pagedSignatureQuery(ctx, where, args, page, pageSize)
}

func (s *Store) pagedSignatureQuery(ctx context.Context, where string, args []any, page, pageSize int) ([]Signature, int64, error) {
	countQ := fmt.Sprintf(`
		SELECT count(DISTINCT s.id)
		FROM signature s
		JOIN signature_kind sk ON sk.signature_id = s.id
		WHERE %s`, where)

	var total int64
	if err := s.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting signatures: %w", err)
	}

	offset := (page - 1) * pageSize
	listArgs := append(append([]any{}, args...), pageSize, offset)
	listQ := fmt.Sprintf(`
		SELECT DISTINCT s.id, s.text, s.hash, s.is_valid, s.added_at
		FROM signature s
		JOIN signature_kind sk ON sk.signature_id = s.id
		WHERE %s
		ORDER BY s.id
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := s.pool.Query(ctx, listQ, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying signatures: %w", err)
	}
	defer rows.Close()

	var sigs []Signature
	for rows.Next() {
		var sig Signature
		if err := rows.Scan(&sig.ID, &sig.Text, &sig.Hash, &sig.IsValid, &sig.AddedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning signature: %w", err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, total, rows.Err()
}

// SourcesGithub returns, for a signature, the repositories observed
// carrying it (forks excluded), ordered by stargazers desc, paged.
func (s *Store) SourcesGithub(ctx context.Context, signatureID int64, kind *Kind, page, pageSize int) ([]Repository, int64, error) {
	where := `sr.signature_id = $1 AND NOT r.is_fork`
	args := []any{signatureID}
	if kind != nil {
		where += fmt.Sprintf(" AND sr.kind = $%d", len(args)+1)
		args = append(args, string(*kind))
	}

	countQ := fmt.Sprintf(`
		SELECT count(DISTINCT r.id)
		FROM signature_repository sr
		JOIN repository r ON r.id = sr.repository_id
		WHERE %s`, where)

	var total int64
	if err := s.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting github sources: %w", err)
	}

	offset := (page - 1) * pageSize
	listArgs := append(append([]any{}, args...), pageSize, offset)
	listQ := fmt.Sprintf(`
		SELECT DISTINCT r.id, r.owner_id, r.name, r.url, r.primary_language, r.stargazers, r.size, r.is_fork,
		       r.created_at, r.pushed_at, r.updated_at, r.added_at, r.visited_at, r.scraped_at,
		       r.target_language_ratio, r.is_deleted, r.found_by_crawling
		FROM signature_repository sr
		JOIN repository r ON r.id = sr.repository_id
		WHERE %s
		ORDER BY r.stargazers DESC, r.id
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := s.pool.Query(ctx, listQ, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying github sources: %w", err)
	}
	defer rows.Close()

	var repos []Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning github source: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, total, rows.Err()
}

// SourcesEtherscan returns, for a signature, the contracts observed
// carrying it, ordered by added_at desc, paged.
func (s *Store) SourcesEtherscan(ctx context.Context, signatureID int64, kind *Kind, page, pageSize int) ([]Contract, int64, error) {
	where := `sc.signature_id = $1`
	args := []any{signatureID}
	if kind != nil {
		where += fmt.Sprintf(" AND sc.kind = $%d", len(args)+1)
		args = append(args, string(*kind))
	}

	countQ := fmt.Sprintf(`
		SELECT count(DISTINCT c.id)
		FROM signature_contract sc
		JOIN contract c ON c.id = sc.contract_id
		WHERE %s`, where)

	var total int64
	if err := s.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting etherscan sources: %w", err)
	}

	offset := (page - 1) * pageSize
	listArgs := append(append([]any{}, args...), pageSize, offset)
	listQ := fmt.Sprintf(`
		SELECT DISTINCT c.id, c.address, c.name, c.compiler, c.compiler_version, c.url, c.scraped_at, c.added_at
		FROM signature_contract sc
		JOIN contract c ON c.id = sc.contract_id
		WHERE %s
		ORDER BY c.added_at DESC, c.id
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := s.pool.Query(ctx, listQ, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying etherscan sources: %w", err)
	}
	defer rows.Close()

	var contracts []Contract
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.Address, &c.Name, &c.Compiler, &c.CompilerVersion, &c.URL, &c.ScrapedAt, &c.AddedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning etherscan source: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, total, rows.Err()
}

// GetStatistics bundles the aggregate counters the query service's
// /statistics endpoint exposes.
func (s *Store) GetStatistics(ctx context.Context) (Statistics, error) {
	var st Statistics

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM signature`).Scan(&st.SignatureCount); err != nil {
		return Statistics{}, fmt.Errorf("counting signatures: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(DISTINCT signature_id) FROM signature_repository`).Scan(&st.SignatureCountGithub); err != nil {
		return Statistics{}, fmt.Errorf("counting github-sourced signatures: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(DISTINCT signature_id) FROM signature_contract`).Scan(&st.SignatureCountEtherscan); err != nil {
		return Statistics{}, fmt.Errorf("counting etherscan-sourced signatures: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(DISTINCT signature_id) FROM signature_registry`).Scan(&st.SignatureCountFourbyte); err != nil {
		return Statistics{}, fmt.Errorf("counting registry-sourced signatures: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT kind, count(*) FROM signature_kind GROUP BY kind ORDER BY kind`)
	if err != nil {
		return Statistics{}, fmt.Errorf("querying kind distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c SourceKindCount
		if err := rows.Scan(&c.Kind, &c.Count); err != nil {
			return Statistics{}, fmt.Errorf("scanning kind distribution row: %w", err)
		}
		st.KindDistribution = append(st.KindDistribution, c)
	}
	if err := rows.Err(); err != nil {
		return Statistics{}, err
	}

	if err := s.pool.QueryRow(ctx, `SELECT min(added_at) FROM app_user WHERE visited_at IS NULL`).Scan(&st.OldestUnvisitedOwner); err != nil {
		return Statistics{}, fmt.Errorf("finding oldest unvisited owner: %w", err)
	}

	return st, nil
}
