package httpserver

import "testing"

func TestNewOffsetPage(t *testing.T) {
	type item struct{ Name string }

	tests := []struct {
		name           string
		itemCount      int
		page, pageSize int
		totalItems     int64
		wantTotalPages int
	}{
		{
			name:           "first of multiple pages",
			itemCount:      10,
			page:           1,
			pageSize:       10,
			totalItems:     25,
			wantTotalPages: 3,
		},
		{
			name:           "single page",
			itemCount:      3,
			page:           1,
			pageSize:       10,
			totalItems:     3,
			wantTotalPages: 1,
		},
		{
			name:           "exact fit",
			itemCount:      10,
			page:           1,
			pageSize:       10,
			totalItems:     10,
			wantTotalPages: 1,
		},
		{
			name:           "empty",
			itemCount:      0,
			page:           1,
			pageSize:       10,
			totalItems:     0,
			wantTotalPages: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]item, tt.itemCount)
			page := NewOffsetPage(items, tt.page, tt.pageSize, tt.totalItems)

			if len(page.Items) != tt.itemCount {
				t.Errorf("Items length = %d, want %d", len(page.Items), tt.itemCount)
			}
			if page.TotalPages != tt.wantTotalPages {
				t.Errorf("TotalPages = %d, want %d", page.TotalPages, tt.wantTotalPages)
			}
			if page.TotalItems != int(tt.totalItems) {
				t.Errorf("TotalItems = %d, want %d", page.TotalItems, tt.totalItems)
			}
		})
	}
}
