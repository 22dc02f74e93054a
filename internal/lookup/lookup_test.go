package lookup

import "testing"

func TestAsHashPrefix(t *testing.T) {
	tests := []struct {
		in       string
		wantOK   bool
		wantNorm string
	}{
		{"0xa9059cbb", true, "a9059cbb"},
		{"a9059cbb", true, "a9059cbb"},
		{"transfer(address,uint256)", false, ""},
		{"", false, ""},
		{"0x", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := asHashPrefix(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("asHashPrefix(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.wantNorm {
				t.Errorf("asHashPrefix(%q) = %q, want %q", tt.in, got, tt.wantNorm)
			}
		})
	}
}
