package model

import (
	"time"

	"canchas/pkg/sanitizer"
)

type EstadoReserva string

const (
	ReservaPendiente EstadoReserva = "Pendiente"
	ReservaPagado    EstadoReserva = "Pagado"
	ReservaCancelado EstadoReserva = "Cancelado"
)

var reservaTransitions = map[EstadoReserva][]EstadoReserva{
	ReservaPendiente: {ReservaPagado, ReservaCancelado},
	ReservaPagado:    {ReservaCancelado},
	ReservaCancelado: {},
}

func (e EstadoReserva) Valid() bool {
	_, ok := reservaTransitions[e]
	return ok
}

// CanTransitionTo enforces the reserva state machine. Staying in the same
// state is not a transition.
func (e EstadoReserva) CanTransitionTo(to EstadoReserva) bool {
	for _, allowed := range reservaTransitions[e] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Reserva struct {
	ID                  string        `json:"id" bson:"_id"`
	CanchaID            string        `json:"cancha_id" bson:"cancha_id"`
	CentroID            string        `json:"centro_id" bson:"centro_id"`
	UserID              string        `json:"user_id" bson:"user_id"`
	HorarioIDs          []string      `json:"horario_ids" bson:"horario_ids"`
	Fecha               string        `json:"fecha" bson:"fecha"`
	Estado              EstadoReserva `json:"estado" bson:"estado"`
	Total               float64       `json:"total" bson:"total"`
	DescuentoAplicado   float64       `json:"descuento_aplicado" bson:"descuento_aplicado"`
	CodigoPromoAplicado *string       `json:"codigo_promo_aplicado" bson:"codigo_promo_aplicado"`
	CuponID             *string       `json:"cupon_id,omitempty" bson:"cupon_id,omitempty"`
	TotalManual         bool          `json:"total_manual" bson:"total_manual"`
	Version             int64         `json:"version" bson:"version"`
	CreatedAt           time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" bson:"updated_at"`
}

type ReservaCreate struct {
	CanchaID     string   `json:"cancha_id" validate:"required,max=64"`
	HorarioIDs   []string `json:"horario_ids" validate:"required,min=1,max=48,unique,dive,required"`
	CodigoPromo  string   `json:"codigo_promo,omitempty" validate:"omitempty,max=40"`
	CodigosPromo []string `json:"codigos_promo,omitempty" validate:"omitempty,dive,max=40"`
	Total        *float64 `json:"total,omitempty" validate:"omitempty,gte=0"`
}

// Codes returns every non-blank coupon code supplied in either field.
func (r *ReservaCreate) Codes() []string {
	var codes []string
	seen := map[string]bool{}
	for _, c := range append([]string{r.CodigoPromo}, r.CodigosPromo...) {
		c = sanitizer.NormalizeCodigo(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		codes = append(codes, c)
	}
	return codes
}

type ReservaUpdate struct {
	HorarioIDs []string `json:"horario_ids,omitempty" validate:"omitempty,min=1,max=48,unique,dive,required"`
	Total      *float64 `json:"total,omitempty" validate:"omitempty,gte=0"`
}

type ReservaEstadoChange struct {
	Estado EstadoReserva `json:"estado" validate:"required,oneof=Pendiente Pagado Cancelado"`
}
