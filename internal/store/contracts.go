package store

import (
	"context"
	"fmt"
)

// UpsertContract inserts a contract row, deduping by address.
func (s *Store) UpsertContract(ctx context.Context, c Contract) error {
	const q = `
		INSERT INTO contract (address, name, compiler, compiler_version, url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO NOTHING`

	if _, err := s.pool.Exec(ctx, q, c.Address, c.Name, c.Compiler, c.CompilerVersion, c.URL); err != nil {
		return fmt.Errorf("upserting contract %s: %w", c.Address, err)
	}
	return nil
}

// UnvisitedContracts returns every contract the explorer scraper has not
// yet fetched an ABI for.
func (s *Store) UnvisitedContracts(ctx context.Context) ([]Contract, error) {
	const q = `
		SELECT id, address, name, compiler, compiler_version, url, scraped_at, added_at
		FROM contract
		WHERE scraped_at IS NULL
		ORDER BY added_at`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying unvisited contracts: %w", err)
	}
	defer rows.Close()

	var contracts []Contract
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.Address, &c.Name, &c.Compiler, &c.CompilerVersion, &c.URL, &c.ScrapedAt, &c.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// MarkContractScraped sets scraped_at = now.
func (s *Store) MarkContractScraped(ctx context.Context, id int64) error {
	const q = `UPDATE contract SET scraped_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("marking contract %d scraped: %w", id, err)
	}
	return nil
}
