package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		page    int
		perPage int
	}{
		{"defaults", "", 1, 50},
		{"explicit", "?page=3&per_page=20", 3, 20},
		{"capped", "?per_page=1000", 1, 200},
		{"invalid ignored", "?page=abc&per_page=-5", 1, 50},
		{"zero ignored", "?page=0", 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/alerts"+tt.query, nil)
			p := ParsePagination(r)
			if p.Page != tt.page || p.PerPage != tt.perPage {
				t.Errorf("got page=%d per_page=%d, want %d/%d", p.Page, p.PerPage, tt.page, tt.perPage)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	tests := []struct {
		page    int
		perPage int
		want    int
	}{
		{1, 50, 0},
		{2, 50, 50},
		{3, 20, 40},
	}
	for _, tt := range tests {
		p := PaginationParams{Page: tt.page, PerPage: tt.perPage}
		if got := p.Offset(); got != tt.want {
			t.Errorf("Offset(page=%d, per_page=%d) = %d, want %d", tt.page, tt.perPage, got, tt.want)
		}
	}
}

func TestTotalPages(t *testing.T) {
	p := PaginationParams{Page: 1, PerPage: 10}
	tests := []struct {
		total int64
		want  int
	}{
		{0, 0},
		{5, 1},
		{10, 1},
		{11, 2},
		{100, 10},
	}
	for _, tt := range tests {
		if got := p.TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name": "x"}`, ""},
		{"malformed", `{"name"`, "malformed JSON"},
		{"wrong type", `{"name": 7}`, "invalid value for field"},
		{"unknown field", `{"nope": "x"}`, "unknown field"},
		{"empty", ``, "request body is empty"},
		{"trailing document", `{"name": "x"}{"name": "y"}`, "single JSON document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			var dst payload
			err := DecodeJSON(r, &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRespondJSON(t *testing.T) {
	w := httptest.NewRecorder()
	RespondJSON(w, http.StatusCreated, map[string]string{"id": "a-1"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %s", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["id"] != "a-1" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestRespondPaginated(t *testing.T) {
	w := httptest.NewRecorder()
	p := PaginationParams{Page: 2, PerPage: 10}
	RespondPaginated(w, []string{"a", "b"}, p, 25)

	var resp PaginatedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Page != 2 || resp.PerPage != 10 || resp.Total != 25 || resp.TotalPages != 3 {
		t.Errorf("unexpected envelope: %+v", resp)
	}
}
