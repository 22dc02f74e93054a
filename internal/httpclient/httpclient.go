// Package httpclient is the shared request executor every worker uses: a
// strategy classifies each response into Ok/Retry/RetryWithAction/
// RetryAfter, and the executor owns the retry loop, backoff, and action
// dispatch so callers never see a retryable failure.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/fourbyte/selectortrace/internal/herr"
)

// Outcome is what a Classifier decides to do with a response.
type Outcome int

const (
	// Ok means the response is final; return it to the caller.
	Ok Outcome = iota
	// Retry means the failure is transient; back off and retry.
	Retry
	// RetryWithAction means an action must run (e.g. rotate a credential
	// pool) before retrying, without counting against the backoff.
	RetryWithAction
	// RetryAfter means sleep exactly the given duration, then retry.
	RetryAfter
)

// Result is what a Classifier returns after inspecting one response.
type Result struct {
	Outcome  Outcome
	Reason   string // for Retry: why, for logging
	Action   func(ctx context.Context) error
	Duration time.Duration // for RetryAfter
	Err      error         // not read by Client.Do: terminal errors are Classify's error return
}

// Classifier decorates outgoing requests and classifies responses for one
// logical endpoint type (registry, explorer, code-host). The code-host
// rate-limit probe does not go through a Classifier.
type Classifier interface {
	Prepare(req *http.Request)
	Classify(resp *http.Response) (Result, error)
}

// Client executes requests through a Classifier's retry/backoff policy.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics func(classification string)
}

// New builds a Client. limiter paces outgoing requests (nil disables
// pacing); breaker trips after a run of non-Ok classifications so a
// worker hammering an upstream that never returns 200 stops issuing
// requests altogether for its cooldown window instead of hot-looping
// the worker at the retry cadence (nil disables breaking). metrics, if
// non-nil, is invoked once per retry with its classification for
// observability.
func New(httpClient *http.Client, limiter *rate.Limiter, breaker *gobreaker.CircuitBreaker, metrics func(string)) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{http: httpClient, limiter: limiter, breaker: breaker, metrics: metrics}
}

const (
	maxTransportRetries = 5
	maxRetryValid       = 10
	retryBaseSeconds    = 5
)

// errRetryableOutcome marks an attempt whose Classify call returned a
// non-Ok Result without an error: the caller should inspect the Result
// that execute populated rather than treat this as a failure to report.
var errRetryableOutcome = errors.New("httpclient: retryable outcome")

// transportError wraps a failure from the underlying http.Client.Do call,
// distinguishing it from a Classify-level terminal error so Do can decide
// which retry budget (transport vs. classification) applies.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// Do executes req (rebuilt fresh on every attempt via newReq) under c's
// classifier, retrying internally until a terminal Ok or error is reached.
// newReq must return a request with a fresh, unconsumed body each call.
func (c *Client) Do(ctx context.Context, classifier Classifier, newReq func() (*http.Request, error)) (*http.Response, error) {
	transportRetries := 0
	retryValid := 1

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		classifier.Prepare(req)

		resp, result, err := c.execute(req, classifier)
		switch {
		case err == nil:
			return resp, nil

		case errors.Is(err, errRetryableOutcome):
			switch result.Outcome {
			case Retry:
				c.recordRetry(result.Reason)
				if retryValid < maxRetryValid {
					retryValid++
				}
				if err := sleep(ctx, time.Duration(retryBaseSeconds*retryValid)*time.Second); err != nil {
					return nil, err
				}

			case RetryWithAction:
				c.recordRetry("action")
				if result.Action != nil {
					if err := result.Action(ctx); err != nil {
						return nil, fmt.Errorf("running retry action: %w", err)
					}
				}

			case RetryAfter:
				c.recordRetry("retry-after")
				if err := sleep(ctx, result.Duration); err != nil {
					return nil, err
				}
			}

		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.recordRetry("breaker-open")
			if retryValid < maxRetryValid {
				retryValid++
			}
			if err := sleep(ctx, time.Duration(retryBaseSeconds*retryValid)*time.Second); err != nil {
				return nil, err
			}

		default:
			var te *transportError
			if errors.As(err, &te) {
				transportRetries++
				if transportRetries >= maxTransportRetries {
					return nil, fmt.Errorf("%w: %v", herr.ErrTransient, te.err)
				}
				if err := sleep(ctx, time.Duration(retryBaseSeconds*retryValid)*time.Second); err != nil {
					return nil, err
				}
				continue
			}
			// A Classify-level terminal error (e.g. ErrResourceUnavailable,
			// a Fatal) — propagate immediately, it is not retryable.
			return nil, err
		}
	}
}

// execute runs one attempt: send req, classify the response, and report
// the outcome through the circuit breaker (if configured) so a run of
// non-Ok classifications counts against it the same way a run of
// transport failures would. A Classify-level terminal error (the resource
// is gone, a credential is invalid) means the upstream answered fine, so
// it is reported to the breaker as success and only surfaced to the
// caller afterward — it should not degrade the breaker's health count
// the way a hung or hot-looping upstream does. resp is only non-nil when
// the returned error is nil (Outcome Ok); for a retryable outcome, result
// is populated and the response body has already been closed.
func (c *Client) execute(req *http.Request, classifier Classifier) (*http.Response, Result, error) {
	var (
		result      Result
		terminalErr error
	)

	attempt := func() (any, error) {
		resp, err := c.http.Do(req) //nolint:bodyclose // body closed below once classified
		if err != nil {
			return nil, &transportError{err}
		}

		r, classifyErr := classifier.Classify(resp)
		if classifyErr != nil {
			resp.Body.Close()
			terminalErr = classifyErr
			return nil, nil
		}
		result = r

		if r.Outcome != Ok {
			resp.Body.Close()
			return nil, errRetryableOutcome
		}
		return resp, nil
	}

	var (
		v   any
		err error
	)
	if c.breaker == nil {
		v, err = attempt()
	} else {
		v, err = c.breaker.Execute(attempt)
	}
	if err != nil {
		return nil, result, err
	}
	if terminalErr != nil {
		return nil, result, terminalErr
	}
	return v.(*http.Response), result, nil
}

func (c *Client) recordRetry(classification string) {
	if c.metrics != nil {
		c.metrics(classification)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
