package validator

import (
	"testing"
	"time"

	"canchas/pkg/logger"
	"canchas/pkg/model"
)

func TestValidate(t *testing.T) {
	v := NewCuponValidator(logger.Nop())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := func() model.CuponDescuento {
		return model.CuponDescuento{
			CentroID:      "centro-1",
			Codigo:        "VERANO10",
			TipoDescuento: model.DescuentoPorcentaje,
			Valor:         10,
			FechaInicio:   start,
			FechaFin:      start.Add(30 * 24 * time.Hour),
			MaximoUsos:    1,
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *model.CuponDescuento)
		wantError bool
	}{
		{name: "valid percentage", mutate: func(*model.CuponDescuento) {}},
		{name: "valid fixed amount above 100", mutate: func(c *model.CuponDescuento) {
			c.TipoDescuento = model.DescuentoMontoFijo
			c.Valor = 150
		}},
		{name: "percentage above 100", mutate: func(c *model.CuponDescuento) { c.Valor = 120 }, wantError: true},
		{name: "zero valor", mutate: func(c *model.CuponDescuento) { c.Valor = 0 }, wantError: true},
		{name: "lower-case codigo", mutate: func(c *model.CuponDescuento) { c.Codigo = "verano10" }, wantError: true},
		{name: "codigo too short", mutate: func(c *model.CuponDescuento) { c.Codigo = "AB" }, wantError: true},
		{name: "unknown tipo", mutate: func(c *model.CuponDescuento) { c.TipoDescuento = "regalo" }, wantError: true},
		{name: "window reversed", mutate: func(c *model.CuponDescuento) { c.FechaFin = start.Add(-time.Hour) }, wantError: true},
		{name: "no uses", mutate: func(c *model.CuponDescuento) { c.MaximoUsos = 0 }, wantError: true},
		{name: "missing centro", mutate: func(c *model.CuponDescuento) { c.CentroID = "" }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := v.Validate(&c)
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
