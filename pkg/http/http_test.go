package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "canchas/pkg/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantRetry   bool
		wantMessage string
	}{
		{
			name:       "not found",
			err:        apperrors.NotFoundWithID("Horario", "h-1"),
			wantStatus: http.StatusNotFound,
			wantCode:   apperrors.CodeNotFound,
		},
		{
			name:       "lost race is retryable",
			err:        fmt.Errorf("claim: %w", apperrors.ConcurrentModification("Horario", "h-1")),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeConcurrentModification,
			wantRetry:  true,
		},
		{
			name:        "plain error hides detail",
			err:         errors.New("mongo: connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    apperrors.CodeInternal,
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := WriteError(rec, tt.err); err != nil {
				t.Fatalf("WriteError() error = %v", err)
			}

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Retry-After") != ""; got != tt.wantRetry {
				t.Errorf("Retry-After present = %v, want %v", got, tt.wantRetry)
			}

			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", body.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && body.Error != tt.wantMessage {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMessage)
			}
		})
	}
}

func TestWritePaginated(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WritePaginated(rec, []string{"a", "b"}, 7, 2, 4); err != nil {
		t.Fatalf("WritePaginated() error = %v", err)
	}

	var body struct {
		Data       []string `json:"data"`
		TotalCount int64    `json:"total_count"`
		Limit      int      `json:"limit"`
		Offset     int64    `json:"offset"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Data) != 2 || body.TotalCount != 7 || body.Limit != 2 || body.Offset != 4 {
		t.Errorf("body = %+v", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
}

func TestExtractLimitOffset(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int64
		wantErr    bool
	}{
		{"", 10, 0, false},
		{"limit=25&offset=50", 25, 50, false},
		{"limit=5000", 100, 0, false},
		{"limit=-1&offset=-9", 10, 0, false},
		{"limit=ten", 0, 0, true},
		{"offset=1.5", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/reservas?"+tt.query, nil)

			limit, offset, err := ExtractLimitOffset(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractLimitOffset() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
					t.Errorf("error code = %v, want %s", err, apperrors.CodeInvalidInput)
				}
				return
			}
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("got (%d, %d), want (%d, %d)", limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
