package pagination

import "testing"

func TestPageRequest_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		in       PageRequest
		wantPage int
		wantSize int
	}{
		{"zero_values", PageRequest{}, 1, DefaultPageSize},
		{"kept", PageRequest{Page: 3, PageSize: 10}, 3, 10},
		{"clamped", PageRequest{Page: -1, PageSize: 1000}, 1, MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Defaults()
			if p.Page != tt.wantPage || p.PageSize != tt.wantSize {
				t.Errorf("expected %d/%d, got %d/%d", tt.wantPage, tt.wantSize, p.Page, p.PageSize)
			}
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[int](nil, 1, 20, 41)
	if resp.TotalPages != 3 || !resp.HasNext {
		t.Errorf("expected 3 pages with a next page, got %+v", resp)
	}
	if resp.Data == nil {
		t.Error("expected empty slice, not nil")
	}

	last := NewPageResponse([]int{1}, 3, 20, 41)
	if last.HasNext {
		t.Error("expected no next page on the last page")
	}
}
