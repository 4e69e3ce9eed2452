package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"

	apperrors "canchas/pkg/errors"
	"canchas/pkg/logger"
	"canchas/pkg/model"
)

type mockHorarioService struct {
	createFunc     func(ctx context.Context, h *model.Horario) error
	bulkCreateFunc func(ctx context.Context, horarios []*model.Horario) (*model.BulkResult, error)
	updateFunc     func(ctx context.Context, id string, u *model.HorarioUpdate) (*model.Horario, error)
}

func (m *mockHorarioService) Create(ctx context.Context, h *model.Horario) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, h)
	}
	return nil
}

func (m *mockHorarioService) BulkCreate(ctx context.Context, horarios []*model.Horario) (*model.BulkResult, error) {
	if m.bulkCreateFunc != nil {
		return m.bulkCreateFunc(ctx, horarios)
	}
	return &model.BulkResult{Created: horarios}, nil
}

func (m *mockHorarioService) GetByID(context.Context, string) (*model.Horario, error) {
	return &model.Horario{}, nil
}

func (m *mockHorarioService) GetMany(context.Context, []string) ([]*model.Horario, error) {
	return nil, nil
}

func (m *mockHorarioService) List(context.Context, string, string) ([]*model.Horario, error) {
	return []*model.Horario{}, nil
}

func (m *mockHorarioService) Update(ctx context.Context, id string, u *model.HorarioUpdate) (*model.Horario, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, u)
	}
	return &model.Horario{ID: id}, nil
}

func (m *mockHorarioService) Delete(context.Context, string) error { return nil }

func (m *mockHorarioService) ClaimForReservation(context.Context, string, string) error { return nil }

func (m *mockHorarioService) Release(context.Context, string, string) (bool, error) { return false, nil }

func (m *mockHorarioService) MarkPaid(context.Context, string, string) error { return nil }

func (m *mockHorarioService) RevertPaid(context.Context, string, string) error { return nil }

func serve(svc *mockHorarioService, method, path, body string) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewHorarioHandler(svc, logger.Nop()).RegisterRoutes(router)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{name: "created", body: `{"cancha_id":"c1","fecha":"2025-01-10","hora_inicio":"09:00","hora_fin":"10:00"}`, wantStatus: http.StatusCreated},
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "overlap", body: `{}`, serviceErr: apperrors.Conflict("overlap"), wantStatus: http.StatusConflict},
		{name: "invalid", body: `{}`, serviceErr: apperrors.Validation("bad", nil), wantStatus: http.StatusUnprocessableEntity},
		{name: "forbidden", body: `{}`, serviceErr: apperrors.Forbidden("no"), wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockHorarioService{
				createFunc: func(context.Context, *model.Horario) error { return tt.serviceErr },
			}
			rec := serve(svc, http.MethodPost, "/api/v1/horarios", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestBulkCreate_MultiStatus(t *testing.T) {
	svc := &mockHorarioService{
		bulkCreateFunc: func(_ context.Context, horarios []*model.Horario) (*model.BulkResult, error) {
			return &model.BulkResult{
				Created: horarios[:1],
				Errors:  []model.BulkEntryError{{Index: 1, Code: apperrors.CodeConflict}},
			}, nil
		},
	}
	body := `{"horarios":[{"cancha_id":"c1"},{"cancha_id":"c1"}]}`
	rec := serve(svc, http.MethodPost, "/api/v1/horarios/bulk", body)

	if rec.Code != http.StatusMultiStatus {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMultiStatus)
	}
	if !strings.Contains(rec.Body.String(), `"index":1`) {
		t.Errorf("body does not report the rejected entry: %s", rec.Body.String())
	}
}

func TestUpdate_ConcurrentModification(t *testing.T) {
	svc := &mockHorarioService{
		updateFunc: func(_ context.Context, id string, _ *model.HorarioUpdate) (*model.Horario, error) {
			return nil, apperrors.ConcurrentModification("Horario", id)
		},
	}
	rec := serve(svc, http.MethodPatch, "/api/v1/horarios/id/h1", `{"hora_fin":"11:00"}`)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on a retryable conflict")
	}
}
