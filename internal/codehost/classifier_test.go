package codehost

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/httpclient"
)

func newPool(t *testing.T) *TokenPool {
	t.Helper()
	pool, err := NewTokenPool(context.Background(), []string{"tok"}, func(context.Context, string) (RateLimit, error) {
		return RateLimit{CoreRemaining: 100, SearchRemaining: 100}, nil
	})
	if err != nil {
		t.Fatalf("NewTokenPool: %v", err)
	}
	return pool
}

func respWithBody(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestClassifierOkOn200And304(t *testing.T) {
	c := Classifier{Tokens: newPool(t), UserAgent: "test"}
	for _, status := range []int{http.StatusOK, http.StatusNotModified} {
		result, err := c.Classify(respWithBody(status, ""))
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", status, err)
		}
		if result.Outcome != httpclient.Ok {
			t.Fatalf("status %d: outcome = %v, want Ok", status, result.Outcome)
		}
	}
}

func TestClassifier401RotatesViaCleanup(t *testing.T) {
	c := Classifier{Tokens: newPool(t), UserAgent: "test"}
	result, err := c.Classify(respWithBody(http.StatusUnauthorized, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != httpclient.RetryWithAction {
		t.Fatalf("outcome = %v, want RetryWithAction", result.Outcome)
	}
	if result.Action == nil {
		t.Fatal("expected a non-nil Action for 401")
	}
}

func TestClassifier403AccessBlockedIsTerminal(t *testing.T) {
	c := Classifier{Tokens: newPool(t), UserAgent: "test"}
	_, err := c.Classify(respWithBody(http.StatusForbidden, `{"message":"Repository access blocked"}`))
	if !errors.Is(err, herr.ErrResourceUnavailable) {
		t.Fatalf("error = %v, want herr.ErrResourceUnavailable", err)
	}
}

func TestClassifier403OtherwiseRefreshes(t *testing.T) {
	c := Classifier{Tokens: newPool(t), UserAgent: "test"}
	result, err := c.Classify(respWithBody(http.StatusForbidden, `{"message":"rate limit exceeded"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != httpclient.RetryWithAction {
		t.Fatalf("outcome = %v, want RetryWithAction", result.Outcome)
	}
	if result.Action == nil {
		t.Fatal("expected a non-nil Action for 403 without access-blocked body")
	}
}

func TestClassifier404And451AreTerminal(t *testing.T) {
	c := Classifier{Tokens: newPool(t), UserAgent: "test"}
	for _, status := range []int{http.StatusNotFound, http.StatusUnavailableForLegalReasons} {
		_, err := c.Classify(respWithBody(status, ""))
		if !errors.Is(err, herr.ErrResourceUnavailable) {
			t.Fatalf("status %d: error = %v, want herr.ErrResourceUnavailable", status, err)
		}
	}
}

func TestClassifierOtherStatusesRetry(t *testing.T) {
	c := Classifier{Tokens: newPool(t), UserAgent: "test"}
	result, err := c.Classify(respWithBody(http.StatusInternalServerError, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != httpclient.Retry {
		t.Fatalf("outcome = %v, want Retry", result.Outcome)
	}
}

func TestPrepareSetsAuthAndPagination(t *testing.T) {
	c := Classifier{Tokens: newPool(t), UserAgent: "selectortrace-test"}
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/repos", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	c.Prepare(req)

	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("Authorization = %q, want %q", got, "Bearer tok")
	}
	if got := req.Header.Get("User-Agent"); got != "selectortrace-test" {
		t.Fatalf("User-Agent = %q, want %q", got, "selectortrace-test")
	}
	if got := req.URL.Query().Get("per_page"); got != "100" {
		t.Fatalf("per_page = %q, want %q", got, "100")
	}
}
