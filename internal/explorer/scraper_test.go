package explorer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fourbyte/selectortrace/internal/httpclient"
)

func TestFetchABIDecodesResultString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"1","message":"OK","result":"[{\"type\":\"function\",\"name\":\"transfer\",\"inputs\":[]}]"}`))
	}))
	defer srv.Close()

	s := &Scraper{HTTP: httpclient.New(nil, nil, nil, nil), APIKey: "key", BaseURL: srv.URL}
	abi, err := s.fetchABI(t.Context(), "0xabc")
	if err != nil {
		t.Fatalf("fetchABI: %v", err)
	}
	if !strings.Contains(string(abi), `"name":"transfer"`) {
		t.Fatalf("abi = %s, want it to contain the transfer entry", abi)
	}
}

func TestFetchABIUnverifiedSourceIsResourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Contract source code not verified"}`))
	}))
	defer srv.Close()

	s := &Scraper{HTTP: httpclient.New(nil, nil, nil, nil), APIKey: "key", BaseURL: srv.URL}
	_, err := s.fetchABI(t.Context(), "0xabc")
	if err == nil {
		t.Fatal("expected an error for an unverified contract")
	}
}
