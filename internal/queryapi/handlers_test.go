package queryapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func requestWithParam(key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	r := httptest.NewRequest("GET", "/", nil)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantOK  bool
		wantVal int
	}{
		{"valid page", "1", true, 1},
		{"valid later page", "12", true, 12},
		{"zero rejected", "0", false, 0},
		{"negative rejected", "-1", false, 0},
		{"non-numeric rejected", "abc", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := requestWithParam("page", tt.value)
			w := httptest.NewRecorder()

			page, ok := parsePage(w, r)
			if ok != tt.wantOK {
				t.Fatalf("parsePage(%q) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if ok && page != tt.wantVal {
				t.Errorf("parsePage(%q) = %d, want %d", tt.value, page, tt.wantVal)
			}
			if !ok && w.Code != 400 {
				t.Errorf("parsePage(%q) wrote status %d, want 400", tt.value, w.Code)
			}
		})
	}
}

func TestParseSignatureID(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		wantOK bool
		wantID int64
	}{
		{"valid id", "42", true, 42},
		{"non-numeric rejected", "abc", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := requestWithParam("signature_id", tt.value)
			w := httptest.NewRecorder()

			id, ok := parseSignatureID(w, r)
			if ok != tt.wantOK {
				t.Fatalf("parseSignatureID(%q) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if ok && id != tt.wantID {
				t.Errorf("parseSignatureID(%q) = %d, want %d", tt.value, id, tt.wantID)
			}
		})
	}
}
