package codehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fourbyte/selectortrace/internal/herr"
)

// rateLimitDTO mirrors the code host's /rate_limit response.
type rateLimitDTO struct {
	Resources struct {
		Core   struct{ Remaining int } `json:"core"`
		Search struct{ Remaining int } `json:"search"`
	} `json:"resources"`
}

// NewProber builds a Prober hitting baseURL's rate-limit endpoint directly
// with stdlib net/http: this call happens before a TokenPool (and hence a
// Classifier) exists, so it cannot run through the shared retry substrate
// it's used to bootstrap.
func NewProber(client *http.Client, userAgent, baseURL string) Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, token string) (RateLimit, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/rate_limit", nil)
		if err != nil {
			return RateLimit{}, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github+json")

		resp, err := client.Do(req)
		if err != nil {
			return RateLimit{}, fmt.Errorf("%w: probing rate limit: %v", herr.ErrTransient, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return RateLimit{}, herr.ErrCredentialInvalid
		}
		if resp.StatusCode != http.StatusOK {
			return RateLimit{}, fmt.Errorf("%w: rate limit probe returned status %d", herr.ErrTransient, resp.StatusCode)
		}

		var dto rateLimitDTO
		if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
			return RateLimit{}, fmt.Errorf("%w: decoding rate limit response: %v", herr.ErrUpstreamSemantic, err)
		}

		return RateLimit{
			CoreRemaining:   dto.Resources.Core.Remaining,
			SearchRemaining: dto.Resources.Search.Remaining,
		}, nil
	}
}
