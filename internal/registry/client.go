// Package registry polls the third-party signature registry's paginated
// API (§4.6), inserting new signatures and halting steady-state sync at the
// first page whose edges are already present in the store.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/httpclient"
)

// Page is one page of the registry's paginated signature listing.
type Page struct {
	Next    *string `json:"next"`
	Results []struct {
		TextSignature string `json:"text_signature"`
	} `json:"results"`
	Count int `json:"count"`
}

// Client fetches registry pages through the shared httpclient substrate.
type Client struct {
	http *httpclient.Client
}

// NewClient builds a Client routing every request through http.
func NewClient(http *httpclient.Client) *Client {
	return &Client{http: http}
}

// FetchPage retrieves and decodes the page at url.
func (c *Client) FetchPage(ctx context.Context, url string) (Page, error) {
	resp, err := c.http.Do(ctx, httpclient.GenericClassifier{}, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Page{}, fmt.Errorf("%w: decoding registry page %s: %v", herr.ErrUpstreamSemantic, url, err)
	}
	return page, nil
}
