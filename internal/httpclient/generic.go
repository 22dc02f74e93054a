package httpclient

import (
	"fmt"
	"net/http"
)

// GenericClassifier is for endpoints that need no special error handling:
// 200 is Ok, anything else is Retry.
type GenericClassifier struct {
	// Decorate, if set, customizes request headers/query beyond the zero
	// value (e.g. a User-Agent or bearer token).
	Decorate func(req *http.Request)
}

func (g GenericClassifier) Prepare(req *http.Request) {
	if g.Decorate != nil {
		g.Decorate(req)
	}
}

func (g GenericClassifier) Classify(resp *http.Response) (Result, error) {
	if resp.StatusCode == http.StatusOK {
		return Result{Outcome: Ok}, nil
	}
	return Result{Outcome: Retry, Reason: fmt.Sprintf("status %d", resp.StatusCode)}, nil
}
