package httpserver

import "testing"

type testParams struct {
	Kind  string `validate:"required,oneof=all function event error"`
	Input string `validate:"required,min=3"`
	Page  int    `validate:"required,gte=1"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		params    testParams
		wantCount int
	}{
		{
			name:      "valid params",
			params:    testParams{Kind: "function", Input: "transfer", Page: 1},
			wantCount: 0,
		},
		{
			name:      "input too short",
			params:    testParams{Kind: "all", Input: "ab", Page: 1},
			wantCount: 1,
		},
		{
			name:      "invalid kind",
			params:    testParams{Kind: "bogus", Input: "transfer", Page: 1},
			wantCount: 1,
		},
		{
			name:      "page below one",
			params:    testParams{Kind: "all", Input: "transfer", Page: 0},
			wantCount: 1, // required fails on the zero value; validation of a field stops at its first failing tag
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.params)
			if len(errs) != tt.wantCount {
				t.Errorf("Validate() returned %d errors, want %d: %+v", len(errs), tt.wantCount, errs)
			}
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kind", "kind"},
		{"CreatedAt", "created_at"},
		{"ID", "i_d"},
		{"PageSize", "page_size"},
		{"lowercase", "lowercase"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := toSnakeCase(tt.in)
			if got != tt.want {
				t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
