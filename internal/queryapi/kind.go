package queryapi

import (
	"fmt"

	"github.com/fourbyte/selectortrace/internal/store"
)

// parseKind maps a path segment's kind filter to the Kind a store query
// should restrict to. "all" (and the empty string) mean no restriction.
func parseKind(s string) (*store.Kind, error) {
	switch s {
	case "", "all":
		return nil, nil
	case "function", "event", "error":
		k := store.Kind(s)
		return &k, nil
	default:
		return nil, fmt.Errorf("kind must be one of: all, function, event, error")
	}
}
