// Package lookup implements the `selectortrace lookup` operator convenience:
// a one-shot selector lookup against the store, bypassing the HTTP query
// service entirely.
package lookup

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fourbyte/selectortrace/internal/config"
	"github.com/fourbyte/selectortrace/internal/platform"
	"github.com/fourbyte/selectortrace/internal/store"
)

const pageSize = 25

// Run looks up input as a hash (if it parses as one) or falls back to a
// text prefix search, and writes the matches to w.
func Run(ctx context.Context, cfg *config.Config, w io.Writer, input string) error {
	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	s := store.New(db)

	var sigs []store.Signature
	if normalized, ok := asHashPrefix(input); ok {
		sigs, _, err = s.SignaturesByHashPrefix(ctx, normalized, nil, 1, pageSize)
	} else {
		sigs, _, err = s.SignaturesByTextPrefix(ctx, input, nil, 1, pageSize)
	}
	if err != nil {
		return fmt.Errorf("looking up %q: %w", input, err)
	}

	if len(sigs) == 0 {
		fmt.Fprintf(w, "no matches for %q\n", input)
		return nil
	}

	for _, sig := range sigs {
		fmt.Fprintf(w, "%s\t0x%s\n", sig.Text, sig.Hash)
	}
	return nil
}

// asHashPrefix strips an optional "0x" prefix and reports whether the
// remainder is a plausible (possibly partial) hex hash.
func asHashPrefix(input string) (string, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(input), "0x")
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return "", false
		}
	}
	return s, true
}
