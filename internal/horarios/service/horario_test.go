package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"canchas/internal/horarios/repository"
	"canchas/internal/horarios/validator"
	"canchas/internal/testutil/memstore"
	"canchas/pkg/cas"
	"canchas/pkg/config"
	apperrors "canchas/pkg/errors"
	"canchas/pkg/identity"
	"canchas/pkg/logger"
	"canchas/pkg/model"
)

type fixture struct {
	svc      HorarioService
	horarios *memstore.Horarios
	locks    *memstore.DayLocks
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	cfg := &config.Config{
		Log:          log,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	horarios := memstore.NewHorarios()
	locks := memstore.NewDayLocks()
	canchas := memstore.NewCanchas(
		model.Cancha{ID: "cancha-1", CentroID: "centro-1", PrecioPorHora: 20},
		model.Cancha{ID: "cancha-2", CentroID: "centro-2", PrecioPorHora: 30},
	)
	svc := NewHorarioService(horarios, locks, canchas, validator.NewHorarioValidator(log), cfg)
	ctx := identity.WithIdentity(context.Background(), &identity.Identity{
		UserID:  "op-1",
		Role:    identity.RoleOperador,
		Centros: []string{"centro-1"},
	})
	return &fixture{svc: svc, horarios: horarios, locks: locks, ctx: ctx}
}

func (f *fixture) create(t *testing.T, inicio, fin string) *model.Horario {
	t.Helper()
	h := &model.Horario{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: inicio, HoraFin: fin}
	if err := f.svc.Create(f.ctx, h); err != nil {
		t.Fatalf("Create(%s-%s) unexpected error: %v", inicio, fin, err)
	}
	return h
}

func strPtr(s string) *string { return &s }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name     string
		existing [][2]string
		inicio   string
		fin      string
		canchaID string
		wantCode string
	}{
		{name: "free day", inicio: "09:00", fin: "10:00"},
		{name: "adjacent after", existing: [][2]string{{"09:00", "10:00"}}, inicio: "10:00", fin: "11:00"},
		{name: "adjacent before", existing: [][2]string{{"09:00", "10:00"}}, inicio: "08:00", fin: "09:00"},
		{name: "starts inside existing", existing: [][2]string{{"09:00", "10:00"}}, inicio: "09:30", fin: "10:30", wantCode: apperrors.CodeConflict},
		{name: "ends inside existing", existing: [][2]string{{"09:00", "10:00"}}, inicio: "08:30", fin: "09:30", wantCode: apperrors.CodeConflict},
		{name: "contains existing", existing: [][2]string{{"09:00", "10:00"}}, inicio: "08:00", fin: "11:00", wantCode: apperrors.CodeConflict},
		{name: "contained by existing", existing: [][2]string{{"08:00", "12:00"}}, inicio: "09:00", fin: "10:00", wantCode: apperrors.CodeConflict},
		{name: "exact duplicate", existing: [][2]string{{"09:00", "10:00"}}, inicio: "09:00", fin: "10:00", wantCode: apperrors.CodeConflict},
		{name: "end before start", inicio: "10:00", fin: "09:00", wantCode: apperrors.CodeValidation},
		{name: "unknown cancha", canchaID: "missing", inicio: "09:00", fin: "10:00", wantCode: apperrors.CodeNotFound},
		{name: "other centro", canchaID: "cancha-2", inicio: "09:00", fin: "10:00", wantCode: apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for _, e := range tt.existing {
				f.create(t, e[0], e[1])
			}

			canchaID := tt.canchaID
			if canchaID == "" {
				canchaID = "cancha-1"
			}
			h := &model.Horario{CanchaID: canchaID, Fecha: "2025-01-10", HoraInicio: tt.inicio, HoraFin: tt.fin}
			err := f.svc.Create(f.ctx, h)

			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if h.ID == "" || h.Estado != model.HorarioDisponible || h.Version != 1 {
					t.Errorf("created horario not initialised: %+v", h)
				}
				return
			}
			assertCode(t, err, tt.wantCode)
			if got := f.horarios.Len(); got != len(tt.existing) {
				t.Errorf("store has %d horarios, want %d", got, len(tt.existing))
			}
		})
	}
}

func TestCreate_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	h := &model.Horario{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: "09:00", HoraFin: "10:00"}
	assertCode(t, f.svc.Create(context.Background(), h), apperrors.CodeUnauthorized)
}

func TestCreate_DayLocked(t *testing.T) {
	f := newFixture(t)
	key := repository.LockKey("cancha-1", "2025-01-10")
	if err := f.locks.Acquire(context.Background(), key, "someone-else", time.Minute); err != nil {
		t.Fatal(err)
	}

	h := &model.Horario{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: "09:00", HoraFin: "10:00"}
	err := f.svc.Create(f.ctx, h)
	assertCode(t, err, apperrors.CodeConcurrentModification)
	if !apperrors.IsRetryable(err) {
		t.Error("lock contention should be retryable")
	}
}

func TestCreate_ConcurrentOverlapping(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := &model.Horario{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: "09:00", HoraFin: "10:30"}
			_ = f.svc.Create(f.ctx, h)
		}()
	}
	wg.Wait()

	all, _ := f.horarios.FindByCanchaAndFecha(context.Background(), "cancha-1", "2025-01-10")
	if len(all) != 1 {
		t.Fatalf("expected exactly one horario to survive, got %d", len(all))
	}
	if f.locks.Held(repository.LockKey("cancha-1", "2025-01-10")) {
		t.Error("day lock was not released")
	}
}

func TestBulkCreate_PartialSuccess(t *testing.T) {
	f := newFixture(t)
	existing := f.create(t, "09:00", "10:00")

	result, err := f.svc.BulkCreate(f.ctx, []*model.Horario{
		{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: "11:00", HoraFin: "12:00"}, // A: ok
		{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: "09:30", HoraFin: "10:30"}, // B: overlaps existing
		{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: "09:00", HoraFin: "10:00"}, // exact duplicate of existing
		{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: "11:30", HoraFin: "12:30"}, // overlaps A
		{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: "11:00", HoraFin: "12:00"}, // duplicate of A
		{CanchaID: "cancha-1", Fecha: "2025-01-10", HoraInicio: "14:00", HoraFin: "13:00"}, // invalid
		{CanchaID: "cancha-2", Fecha: "2025-01-10", HoraInicio: "09:00", HoraFin: "10:00"}, // forbidden centro
		{CanchaID: "cancha-1", Fecha: "2025-01-11", HoraInicio: "09:00", HoraFin: "10:00"}, // other day ok
	})
	if err != nil {
		t.Fatalf("BulkCreate() unexpected error: %v", err)
	}

	if len(result.Created) != 2 {
		t.Errorf("created = %d, want 2", len(result.Created))
	}
	if len(result.Duplicates) != 2 {
		t.Errorf("duplicates = %d, want 2", len(result.Duplicates))
	}
	if len(result.Errors) != 4 {
		t.Errorf("errors = %d, want 4: %+v", len(result.Errors), result.Errors)
	}
	if total := len(result.Created) + len(result.Duplicates) + len(result.Errors); total != 8 {
		t.Errorf("classified %d entries, want 8", total)
	}

	codes := map[int]string{}
	for _, e := range result.Errors {
		codes[e.Index] = e.Code
	}
	want := map[int]string{
		1: apperrors.CodeConflict,
		3: apperrors.CodeConflict,
		5: apperrors.CodeValidation,
		6: apperrors.CodeForbidden,
	}
	for idx, code := range want {
		if codes[idx] != code {
			t.Errorf("entry %d code = %q, want %q", idx, codes[idx], code)
		}
	}

	day, _ := f.horarios.FindByCanchaAndFecha(context.Background(), "cancha-1", "2025-01-10")
	if len(day) != 2 || day[0].ID != existing.ID {
		t.Errorf("unexpected horarios for the day: %+v", day)
	}
	assertNoOverlap(t, day)
}

func TestBulkCreate_Limits(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BulkCreate(f.ctx, nil)
	assertCode(t, err, apperrors.CodeValidation)

	tooMany := make([]*model.Horario, config.DefaultBulkCreateLimit+1)
	_, err = f.svc.BulkCreate(f.ctx, tooMany)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestUpdate(t *testing.T) {
	ocupado := model.HorarioOcupado
	reservado := model.HorarioReservado

	tests := []struct {
		name     string
		claim    bool
		update   model.HorarioUpdate
		wantCode string
		check    func(t *testing.T, h *model.Horario)
	}{
		{
			name:   "extend end",
			update: model.HorarioUpdate{HoraFin: strPtr("10:30")},
			check: func(t *testing.T, h *model.Horario) {
				if h.HoraFin != "10:30" || h.Version != 2 {
					t.Errorf("got %+v", h)
				}
			},
		},
		{
			name:     "overlap with sibling",
			update:   model.HorarioUpdate{HoraFin: strPtr("11:30")},
			wantCode: apperrors.CodeConflict,
		},
		{
			name:     "invalid range",
			update:   model.HorarioUpdate{HoraInicio: strPtr("10:00")},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:   "block slot",
			update: model.HorarioUpdate{Estado: &ocupado},
			check: func(t *testing.T, h *model.Horario) {
				if h.Estado != model.HorarioOcupado {
					t.Errorf("estado = %s", h.Estado)
				}
			},
		},
		{
			name:     "operators cannot reserve",
			update:   model.HorarioUpdate{Estado: &reservado},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "claimed slot keeps its times",
			claim:    true,
			update:   model.HorarioUpdate{HoraInicio: strPtr("08:00")},
			wantCode: apperrors.CodeInvalidState,
		},
		{
			name:     "claimed slot keeps its estado",
			claim:    true,
			update:   model.HorarioUpdate{Estado: &ocupado},
			wantCode: apperrors.CodeInvalidState,
		},
		{
			name:   "claimed slot accepts unchanged times",
			claim:  true,
			update: model.HorarioUpdate{HoraInicio: strPtr("09:00")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			h := f.create(t, "09:00", "10:00")
			f.create(t, "11:00", "12:00")
			if tt.claim {
				if err := f.svc.ClaimForReservation(f.ctx, h.ID, "reserva-1"); err != nil {
					t.Fatal(err)
				}
			}

			updated, err := f.svc.Update(f.ctx, h.ID, &tt.update)
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, updated)
			}
			day, _ := f.horarios.FindByCanchaAndFecha(context.Background(), "cancha-1", "2025-01-10")
			assertNoOverlap(t, day)
		})
	}
}

func TestUpdate_StaleVersion(t *testing.T) {
	f := newFixture(t)
	h := f.create(t, "09:00", "10:00")

	f.horarios.OnSwap = func(id string) error {
		f.horarios.OnSwap = nil
		// Another writer bumps the version between our read and write.
		return f.horarios.Swap(id, cas.Expect{}, cas.Set{"hora_fin": "10:15"})
	}

	_, err := f.svc.Update(f.ctx, h.ID, &model.HorarioUpdate{HoraFin: strPtr("10:30")})
	assertCode(t, err, apperrors.CodeConcurrentModification)
}

func TestClaimAndRelease(t *testing.T) {
	f := newFixture(t)
	h := f.create(t, "09:00", "10:00")

	if err := f.svc.ClaimForReservation(f.ctx, h.ID, "reserva-1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	err := f.svc.ClaimForReservation(f.ctx, h.ID, "reserva-2")
	assertCode(t, err, apperrors.CodeConcurrentModification)

	_, err = f.svc.Release(f.ctx, h.ID, "reserva-2")
	assertCode(t, err, apperrors.CodeConflict)

	if err := f.svc.MarkPaid(f.ctx, h.ID, "reserva-1"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if err := f.svc.MarkPaid(f.ctx, h.ID, "reserva-1"); err != nil {
		t.Fatalf("MarkPaid should be idempotent: %v", err)
	}

	released, err := f.svc.Release(f.ctx, h.ID, "reserva-1")
	if err != nil || !released {
		t.Fatalf("Release() = %v, %v, want true, nil", released, err)
	}
	got, _ := f.svc.GetByID(f.ctx, h.ID)
	if got.Estado != model.HorarioDisponible || got.ReservaID != nil {
		t.Errorf("released horario = %+v", got)
	}
	released, err = f.svc.Release(f.ctx, h.ID, "reserva-1")
	if err != nil || released {
		t.Errorf("Release() of a free horario = %v, %v, want false, nil", released, err)
	}

	assertCode(t, f.svc.ClaimForReservation(f.ctx, "missing", "reserva-1"), apperrors.CodeNotFound)
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	h := f.create(t, "09:00", "10:00")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := f.svc.ClaimForReservation(f.ctx, h.ID, "reserva-"+string(rune('a'+i))); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	free := f.create(t, "09:00", "10:00")
	claimed := f.create(t, "10:00", "11:00")
	if err := f.svc.ClaimForReservation(f.ctx, claimed.ID, "reserva-1"); err != nil {
		t.Fatal(err)
	}

	assertCode(t, f.svc.Delete(f.ctx, claimed.ID), apperrors.CodeInvalidState)
	if err := f.svc.Delete(f.ctx, free.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	assertCode(t, f.svc.Delete(f.ctx, free.ID), apperrors.CodeNotFound)

	usuario := identity.WithIdentity(context.Background(), &identity.Identity{UserID: "u1", Role: identity.RoleUsuario})
	assertCode(t, f.svc.Delete(usuario, claimed.ID), apperrors.CodeForbidden)
}

func TestListAndGetMany(t *testing.T) {
	f := newFixture(t)
	late := f.create(t, "18:00", "19:00")
	early := f.create(t, "08:00", "09:00")

	list, err := f.svc.List(f.ctx, "cancha-1", "2025-01-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != early.ID || list[1].ID != late.ID {
		t.Errorf("List() not sorted by hora_inicio: %+v", list)
	}

	_, err = f.svc.List(f.ctx, "cancha-1", "")
	assertCode(t, err, apperrors.CodeInvalidInput)

	many, err := f.svc.GetMany(f.ctx, []string{late.ID, early.ID})
	if err != nil {
		t.Fatal(err)
	}
	if many[0].ID != late.ID || many[1].ID != early.ID {
		t.Error("GetMany() should keep the requested order")
	}

	_, err = f.svc.GetMany(f.ctx, []string{late.ID, "missing"})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestFindOverlap(t *testing.T) {
	siblings := []*model.Horario{
		{ID: "a", HoraInicio: "09:00", HoraFin: "10:00"},
		{ID: "b", HoraInicio: "12:00", HoraFin: "13:00"},
	}
	iv, _ := model.NewInterval("09:30", "12:30")

	if got := findOverlap(iv, siblings, ""); got == nil || got.ID != "a" {
		t.Errorf("findOverlap() = %v, want a", got)
	}
	if got := findOverlap(iv, siblings[:1], "a"); got != nil {
		t.Errorf("findOverlap() should skip the excluded id, got %v", got)
	}
}

func assertNoOverlap(t *testing.T, horarios []*model.Horario) {
	t.Helper()
	for i := range horarios {
		for j := i + 1; j < len(horarios); j++ {
			a, errA := horarios[i].Interval()
			b, errB := horarios[j].Interval()
			if errA != nil || errB != nil {
				t.Fatal(errors.Join(errA, errB))
			}
			if a.Overlaps(b) {
				t.Errorf("horarios %s and %s overlap", horarios[i].ID, horarios[j].ID)
			}
		}
	}
}
