// Package explorer scrapes the block explorer's verified-contract listing
// and fetches each contract's ABI through its always-200 JSON API (§4.7).
package explorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/httpclient"
)

// envelope mirrors the explorer's uniform {status, message, result}
// response shape, used by the ABI endpoint (the verified-contracts listing
// is an HTML page and is parsed separately).
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Classifier implements httpclient.Classifier for the explorer API, which
// always answers HTTP 200 and reports failure inside the JSON body.
type Classifier struct {
	APIKey string
}

func (c Classifier) Prepare(req *http.Request) {
	q := req.URL.Query()
	q.Set("apikey", c.APIKey)
	req.URL.RawQuery = q.Encode()
}

func (c Classifier) Classify(resp *http.Response) (httpclient.Result, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpclient.Result{}, fmt.Errorf("reading explorer response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return httpclient.Result{}, fmt.Errorf("%w: decoding explorer envelope: %v", herr.ErrUpstreamSemantic, err)
	}

	if env.Status == "1" {
		return httpclient.Result{Outcome: httpclient.Ok}, nil
	}

	var result string
	_ = json.Unmarshal(env.Result, &result)
	if result == "" {
		result = env.Message
	}

	switch result {
	case "Invalid API Key":
		return httpclient.Result{}, herr.NewFatal("explorer", herr.ErrCredentialInvalid)
	case "Contract source code not verified":
		return httpclient.Result{}, fmt.Errorf("%w: contract source not verified", herr.ErrResourceUnavailable)
	case "Max rate limit reached":
		return httpclient.Result{Outcome: httpclient.RetryAfter, Duration: time.Second}, nil
	default:
		return httpclient.Result{Outcome: httpclient.Retry, Reason: result}, nil
	}
}
