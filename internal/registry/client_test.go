package registry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fourbyte/selectortrace/internal/httpclient"
)

func TestFetchPageDecodesResultsAndNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"next": "https://example.test/api/v1/signatures/?page=2",
			"results": [{"text_signature": "transfer(address,uint256)"}],
			"count": 1
		}`))
	}))
	defer srv.Close()

	client := NewClient(httpclient.New(nil, nil, nil, nil))
	page, err := client.FetchPage(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].TextSignature != "transfer(address,uint256)" {
		t.Fatalf("Results = %+v, want one transfer(address,uint256) entry", page.Results)
	}
	if page.Next == nil || *page.Next != "https://example.test/api/v1/signatures/?page=2" {
		t.Fatalf("Next = %v, want the page-2 URL", page.Next)
	}
}

func TestFetchPageLastPageHasNilNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"next": null, "results": [], "count": 0}`))
	}))
	defer srv.Close()

	client := NewClient(httpclient.New(nil, nil, nil, nil))
	page, err := client.FetchPage(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.Next != nil {
		t.Fatalf("Next = %v, want nil", page.Next)
	}
	if len(page.Results) != 0 {
		t.Fatalf("Results = %+v, want empty", page.Results)
	}
}
