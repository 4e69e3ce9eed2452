// Package pricing computes reservation amounts. All arithmetic is done in
// decimal and only converted back to float64 at the boundary.
package pricing

import (
	"fmt"
	"time"

	"canchas/pkg/model"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

var (
	hundred       = decimal.NewFromInt(100)
	minutesInHour = decimal.NewFromInt(60)
)

// Duration sums the length of every slot.
func Duration(horarios []*model.Horario) (time.Duration, error) {
	var total time.Duration
	for _, h := range horarios {
		interval, err := h.Interval()
		if err != nil {
			return 0, fmt.Errorf("horario %s: %w", h.ID, err)
		}
		total += interval.Duration()
	}
	return total, nil
}

// Total is the sum of slot durations in hours times the hourly rate,
// rounded to cents.
func Total(horarios []*model.Horario, precioPorHora float64) (float64, error) {
	minutes := decimal.Zero
	for _, h := range horarios {
		interval, err := h.Interval()
		if err != nil {
			return 0, fmt.Errorf("horario %s: %w", h.ID, err)
		}
		minutes = minutes.Add(decimal.NewFromInt(int64(interval.End - interval.Start)))
	}

	total := minutes.Div(minutesInHour).Mul(decimal.NewFromFloat(precioPorHora))
	return total.Round(moneyPlaces).InexactFloat64(), nil
}

// Discount is the amount a coupon takes off total. Percentages round to the
// nearest whole currency unit; fixed amounts are returned as-is.
func Discount(total float64, cupon *model.CuponDescuento) float64 {
	if cupon == nil {
		return 0
	}
	switch cupon.TipoDescuento {
	case model.DescuentoPorcentaje:
		d := decimal.NewFromFloat(total).Mul(decimal.NewFromFloat(cupon.Valor)).Div(hundred)
		return d.Round(0).InexactFloat64()
	case model.DescuentoMontoFijo:
		return decimal.NewFromFloat(cupon.Valor).Round(moneyPlaces).InexactFloat64()
	default:
		return 0
	}
}

// Final is total minus discount, never below zero.
func Final(total, discount float64) float64 {
	final := decimal.NewFromFloat(total).Sub(decimal.NewFromFloat(discount))
	if final.IsNegative() {
		return 0
	}
	return final.Round(moneyPlaces).InexactFloat64()
}

// Applied is the part of discount actually taken off total.
func Applied(total, discount float64) float64 {
	t := decimal.NewFromFloat(total)
	d := decimal.NewFromFloat(discount)
	return decimal.Min(t, d).Round(moneyPlaces).InexactFloat64()
}
