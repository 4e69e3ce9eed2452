package pricing

import (
	"testing"
	"time"

	"canchas/pkg/model"
)

func slot(inicio, fin string) *model.Horario {
	return &model.Horario{ID: inicio, HoraInicio: inicio, HoraFin: fin}
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name  string
		slots []*model.Horario
		rate  float64
		want  float64
	}{
		{"two one-hour slots", []*model.Horario{slot("09:00", "10:00"), slot("10:00", "11:00")}, 20, 40},
		{"half hour", []*model.Horario{slot("09:00", "09:30")}, 25, 12.5},
		{"ninety minutes", []*model.Horario{slot("18:00", "19:30")}, 35.5, 53.25},
		{"twenty minutes rounds to cents", []*model.Horario{slot("09:00", "09:20")}, 10, 3.33},
		{"no slots", nil, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Total(tt.slots, tt.rate)
			if err != nil {
				t.Fatalf("Total() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Total() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTotal_InvalidSlot(t *testing.T) {
	if _, err := Total([]*model.Horario{slot("10:00", "09:00")}, 20); err == nil {
		t.Error("expected error for inverted slot")
	}
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		cupon *model.CuponDescuento
		want  float64
	}{
		{"no coupon", 20, nil, 0},
		{"ten percent of twenty", 20, &model.CuponDescuento{TipoDescuento: model.DescuentoPorcentaje, Valor: 10}, 2},
		{"rounds half up", 25, &model.CuponDescuento{TipoDescuento: model.DescuentoPorcentaje, Valor: 10}, 3},
		{"rounds down", 24, &model.CuponDescuento{TipoDescuento: model.DescuentoPorcentaje, Valor: 10}, 2},
		{"fixed amount", 40, &model.CuponDescuento{TipoDescuento: model.DescuentoMontoFijo, Valor: 15}, 15},
		{"fixed larger than total", 10, &model.CuponDescuento{TipoDescuento: model.DescuentoMontoFijo, Valor: 15}, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Discount(tt.total, tt.cupon); got != tt.want {
				t.Errorf("Discount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFinal(t *testing.T) {
	if got := Final(20, 2); got != 18 {
		t.Errorf("Final(20, 2) = %v, want 18", got)
	}
	if got := Final(10, 15); got != 0 {
		t.Errorf("Final(10, 15) = %v, want 0", got)
	}
	if got := Applied(10, 15); got != 10 {
		t.Errorf("Applied(10, 15) = %v, want 10", got)
	}
}

func TestDuration(t *testing.T) {
	got, err := Duration([]*model.Horario{slot("09:00", "10:00"), slot("10:30", "11:15")})
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if got != 105*time.Minute {
		t.Errorf("Duration() = %v, want 1h45m", got)
	}
}
