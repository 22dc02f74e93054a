package codehost

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/httpclient"
)

// Classifier implements httpclient.Classifier for the code-host's REST API:
// it authenticates requests with the pool's active credential and
// classifies 401/403/404/451 responses into credential rotation or terminal
// unavailability per the host's documented behavior.
type Classifier struct {
	Tokens    *TokenPool
	UserAgent string
	Decorate  func(req *http.Request)
}

func (c Classifier) Prepare(req *http.Request) {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.Tokens.Active())
	q := req.URL.Query()
	if q.Get("per_page") == "" {
		q.Set("per_page", "100")
	}
	req.URL.RawQuery = q.Encode()
	if c.Decorate != nil {
		c.Decorate(req)
	}
}

func (c Classifier) Classify(resp *http.Response) (httpclient.Result, error) {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotModified:
		return httpclient.Result{Outcome: httpclient.Ok}, nil

	case http.StatusUnauthorized:
		return httpclient.Result{
			Outcome: httpclient.RetryWithAction,
			Reason:  "401 unauthorized: active credential invalid",
			Action:  c.Tokens.Cleanup,
		}, nil

	case http.StatusForbidden:
		body, _ := io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewReader(body))
		if bytes.Contains(bytes.ToLower(body), []byte("access blocked")) {
			return httpclient.Result{}, fmt.Errorf("%w: access blocked", herr.ErrResourceUnavailable)
		}
		return httpclient.Result{
			Outcome: httpclient.RetryWithAction,
			Reason:  "403 forbidden: credential exhausted",
			Action:  c.Tokens.Refresh,
		}, nil

	case http.StatusNotFound, http.StatusUnavailableForLegalReasons:
		return httpclient.Result{}, fmt.Errorf("%w: status %d", herr.ErrResourceUnavailable, resp.StatusCode)

	default:
		return httpclient.Result{Outcome: httpclient.Retry, Reason: fmt.Sprintf("status %d", resp.StatusCode)}, nil
	}
}
