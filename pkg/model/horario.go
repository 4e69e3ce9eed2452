package model

import "time"

type EstadoHorario string

const (
	HorarioDisponible EstadoHorario = "Disponible"
	HorarioReservado  EstadoHorario = "Reservado"
	HorarioPagado     EstadoHorario = "Pagado"
	HorarioOcupado    EstadoHorario = "Ocupado"
)

func (e EstadoHorario) Valid() bool {
	switch e {
	case HorarioDisponible, HorarioReservado, HorarioPagado, HorarioOcupado:
		return true
	}
	return false
}

type Horario struct {
	ID         string        `json:"id" bson:"_id"`
	CanchaID   string        `json:"cancha_id" bson:"cancha_id" validate:"required,max=64"`
	Fecha      string        `json:"fecha" bson:"fecha" validate:"required,fecha"`
	HoraInicio string        `json:"hora_inicio" bson:"hora_inicio" validate:"required,hora"`
	HoraFin    string        `json:"hora_fin" bson:"hora_fin" validate:"required,hora,hora_after=HoraInicio"`
	Estado     EstadoHorario `json:"estado" bson:"estado" validate:"omitempty,oneof=Disponible Reservado Pagado Ocupado"`
	ReservaID  *string       `json:"reserva_id" bson:"reserva_id"`
	Version    int64         `json:"version" bson:"version"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" bson:"updated_at"`
}

// Claimed reports whether the slot is held by a reserva or otherwise not
// free. Claimed slots keep their time range fixed.
func (h *Horario) Claimed() bool {
	return h.ReservaID != nil || h.Estado != HorarioDisponible
}

func (h *Horario) Interval() (Interval, error) {
	return NewInterval(h.HoraInicio, h.HoraFin)
}

func (h *Horario) OwnedBy(reservaID string) bool {
	return h.ReservaID != nil && *h.ReservaID == reservaID
}

// HorarioUpdate carries the operator-editable fields. Nil means unchanged.
type HorarioUpdate struct {
	Fecha      *string        `json:"fecha,omitempty" validate:"omitempty,fecha"`
	HoraInicio *string        `json:"hora_inicio,omitempty" validate:"omitempty,hora"`
	HoraFin    *string        `json:"hora_fin,omitempty" validate:"omitempty,hora"`
	Estado     *EstadoHorario `json:"estado,omitempty" validate:"omitempty,oneof=Disponible Ocupado"`
}

func (u *HorarioUpdate) ChangesTime() bool {
	return u.Fecha != nil || u.HoraInicio != nil || u.HoraFin != nil
}

type BulkEntryError struct {
	Index   int      `json:"index"`
	Horario *Horario `json:"horario"`
	Code    string   `json:"code"`
	Reason  string   `json:"reason"`
}

// BulkResult classifies every submitted entry exactly once.
type BulkResult struct {
	Created    []*Horario       `json:"created"`
	Duplicates []BulkEntryError `json:"duplicates"`
	Errors     []BulkEntryError `json:"errors"`
}
