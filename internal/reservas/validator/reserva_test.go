package validator

import (
	"testing"

	"canchas/pkg/logger"
	"canchas/pkg/model"
)

func TestValidateCreate(t *testing.T) {
	v := NewReservaValidator(logger.Nop())
	negative := -5.0

	tests := []struct {
		name      string
		req       model.ReservaCreate
		wantError bool
	}{
		{name: "valid", req: model.ReservaCreate{CanchaID: "c1", HorarioIDs: []string{"h1", "h2"}}},
		{name: "no horarios", req: model.ReservaCreate{CanchaID: "c1"}, wantError: true},
		{name: "repeated horario", req: model.ReservaCreate{CanchaID: "c1", HorarioIDs: []string{"h1", "h1"}}, wantError: true},
		{name: "blank horario id", req: model.ReservaCreate{CanchaID: "c1", HorarioIDs: []string{""}}, wantError: true},
		{name: "missing cancha", req: model.ReservaCreate{HorarioIDs: []string{"h1"}}, wantError: true},
		{name: "negative total", req: model.ReservaCreate{CanchaID: "c1", HorarioIDs: []string{"h1"}, Total: &negative}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCreate(&tt.req)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateCreate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateEstado(t *testing.T) {
	v := NewReservaValidator(logger.Nop())

	if err := v.ValidateEstado(&model.ReservaEstadoChange{Estado: model.ReservaPagado}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.ValidateEstado(&model.ReservaEstadoChange{Estado: "Reembolsado"}); err == nil {
		t.Error("expected error for unknown estado")
	}
}
