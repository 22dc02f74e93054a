package httpclient

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegativeCacheNilClientIsAlwaysMiss(t *testing.T) {
	c := NewNegativeCache(nil, slog.Default())
	ctx := context.Background()

	assert.False(t, c.Recent(ctx, "explorer:contract:0xdead"))

	// MarkUnavailable on a nil redis client must not panic.
	c.MarkUnavailable(ctx, "explorer:contract:0xdead")
}

func TestNegativeCacheNilReceiverIsAlwaysMiss(t *testing.T) {
	var c *NegativeCache
	ctx := context.Background()

	assert.False(t, c.Recent(ctx, "github:repo:foo/bar"))
	c.MarkUnavailable(ctx, "github:repo:foo/bar")
}
