package codehost

import (
	"testing"
	"time"

	"github.com/fourbyte/selectortrace/internal/store"
)

func TestLanguageRatio(t *testing.T) {
	cases := []struct {
		name       string
		breakdown  map[string]int64
		target     string
		wantRatio  float64
	}{
		{"empty breakdown", nil, "Solidity", 0},
		{"target absent", map[string]int64{"Go": 100}, "Solidity", 0},
		{"target half", map[string]int64{"Solidity": 50, "Go": 50}, "Solidity", 0.5},
		{"target all", map[string]int64{"Solidity": 100}, "Solidity", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := languageRatio(tc.breakdown, tc.target); got != tc.wantRatio {
				t.Fatalf("languageRatio(%v, %q) = %v, want %v", tc.breakdown, tc.target, got, tc.wantRatio)
			}
		})
	}
}

func TestOwnerLoginOfParsesHTMLURL(t *testing.T) {
	r := store.Repository{URL: "https://github.com/ethereum/solidity"}
	if got := ownerLoginOf(r); got != "ethereum" {
		t.Fatalf("ownerLoginOf = %q, want %q", got, "ethereum")
	}
}

func TestOwnerLoginOfHandlesTrailingSlash(t *testing.T) {
	r := store.Repository{URL: "https://github.com/ethereum/solidity/"}
	if got := ownerLoginOf(r); got != "ethereum" {
		t.Fatalf("ownerLoginOf = %q, want %q", got, "ethereum")
	}
}

func TestOwnerLoginOfEmptyURL(t *testing.T) {
	if got := ownerLoginOf(store.Repository{URL: ""}); got != "" {
		t.Fatalf("ownerLoginOf(empty) = %q, want empty string", got)
	}
}

func TestRatioProbeCutoffExcludesPreCutoffRepositories(t *testing.T) {
	preCutoff := time.Date(2017, time.June, 1, 0, 0, 0, 0, time.UTC)
	postCutoff := time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(ratioProbeCutoffYear, time.January, 1, 0, 0, 0, 0, time.UTC)

	if preCutoff.After(cutoff) {
		t.Fatal("fixture precondition violated: preCutoff should not be after the ratio-probe cutoff")
	}
	if !postCutoff.After(cutoff) {
		t.Fatal("fixture precondition violated: postCutoff should be after the ratio-probe cutoff")
	}
}
