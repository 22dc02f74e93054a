package queryapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fourbyte/selectortrace/internal/store"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    *store.Kind
		wantErr bool
	}{
		{"", nil, false},
		{"all", nil, false},
		{"function", kindPtr(store.KindFunction), false},
		{"event", kindPtr(store.KindEvent), false},
		{"error", kindPtr(store.KindError), false},
		{"bogus", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func kindPtr(k store.Kind) *store.Kind { return &k }
