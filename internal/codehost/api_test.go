package codehost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fourbyte/selectortrace/internal/httpclient"
)

func TestGetRepositorySendsIfModifiedSinceWhenLastUpdatedAtIsSet(t *testing.T) {
	lastUpdatedAt := time.Date(2024, time.March, 2, 10, 0, 0, 0, time.UTC)
	var gotHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	api := NewAPI(httpclient.New(nil, nil, nil, nil), newPool(t), "selectortrace-test", srv.URL)
	_, changed, err := api.GetRepository(context.Background(), "acme", "widgets", lastUpdatedAt)
	if err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	if changed {
		t.Fatal("changed = true, want false on 304")
	}
	if want := lastUpdatedAt.Format(http.TimeFormat); gotHeader != want {
		t.Fatalf("If-Modified-Since = %q, want %q", gotHeader, want)
	}
}

func TestGetRepositoryOmitsIfModifiedSinceWhenLastUpdatedAtIsZero(t *testing.T) {
	var sawHeader bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawHeader = r.Header.Get("If-Modified-Since") != ""
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"name":"widgets","owner":{"id":2,"login":"acme"}}`))
	}))
	defer srv.Close()

	api := NewAPI(httpclient.New(nil, nil, nil, nil), newPool(t), "selectortrace-test", srv.URL)
	repo, changed, err := api.GetRepository(context.Background(), "acme", "widgets", time.Time{})
	if err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	if !changed {
		t.Fatal("changed = false, want true on 200")
	}
	if sawHeader {
		t.Fatal("If-Modified-Since sent despite a zero lastUpdatedAt")
	}
	if repo.Name != "widgets" {
		t.Fatalf("repo.Name = %q, want %q", repo.Name, "widgets")
	}
}
