package explorer

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/httpclient"
)

func resp(body string) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}
}

func TestClassifierOkOnStatusOne(t *testing.T) {
	c := Classifier{APIKey: "key"}
	result, err := c.Classify(resp(`{"status":"1","message":"OK","result":"0x6060"}`))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Outcome != httpclient.Ok {
		t.Fatalf("Outcome = %v, want Ok", result.Outcome)
	}
}

func TestClassifierInvalidAPIKeyIsFatal(t *testing.T) {
	c := Classifier{APIKey: "key"}
	_, err := c.Classify(resp(`{"status":"0","message":"NOTOK","result":"Invalid API Key"}`))
	if !herr.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if !errors.Is(err, herr.ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid, got %v", err)
	}
}

func TestClassifierUnverifiedSourceIsResourceUnavailable(t *testing.T) {
	c := Classifier{APIKey: "key"}
	_, err := c.Classify(resp(`{"status":"0","message":"NOTOK","result":"Contract source code not verified"}`))
	if !errors.Is(err, herr.ErrResourceUnavailable) {
		t.Fatalf("expected ErrResourceUnavailable, got %v", err)
	}
	if herr.IsFatal(err) {
		t.Fatal("unverified source should not be fatal to the whole worker")
	}
}

func TestClassifierRateLimitRetriesAfterOneSecond(t *testing.T) {
	c := Classifier{APIKey: "key"}
	result, err := c.Classify(resp(`{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Outcome != httpclient.RetryAfter || result.Duration != time.Second {
		t.Fatalf("result = %+v, want RetryAfter(1s)", result)
	}
}

func TestClassifierOtherFailuresRetry(t *testing.T) {
	c := Classifier{APIKey: "key"}
	result, err := c.Classify(resp(`{"status":"0","message":"NOTOK","result":"some transient issue"}`))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Outcome != httpclient.Retry {
		t.Fatalf("Outcome = %v, want Retry", result.Outcome)
	}
}

func TestPrepareSetsAPIKey(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.test/api", nil)
	if err != nil {
		t.Fatal(err)
	}
	Classifier{APIKey: "secret"}.Prepare(req)
	if req.URL.Query().Get("apikey") != "secret" {
		t.Fatalf("apikey query param = %q, want secret", req.URL.Query().Get("apikey"))
	}
}
