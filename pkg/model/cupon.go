package model

import "time"

type TipoDescuento string

const (
	DescuentoPorcentaje TipoDescuento = "porcentaje"
	DescuentoMontoFijo  TipoDescuento = "monto_fijo"
)

type CuponDescuento struct {
	ID            string         `json:"id" bson:"_id"`
	CentroID      string         `json:"centro_id" bson:"centro_id" validate:"required,max=64"`
	Codigo        string         `json:"codigo" bson:"codigo" validate:"required,codigo"`
	TipoDescuento TipoDescuento  `json:"tipo_descuento" bson:"tipo_descuento" validate:"required,oneof=porcentaje monto_fijo"`
	Valor         float64        `json:"valor" bson:"valor" validate:"required,gt=0,valor_descuento"`
	FechaInicio   time.Time      `json:"fecha_inicio" bson:"fecha_inicio" validate:"required"`
	FechaFin      time.Time      `json:"fecha_fin" bson:"fecha_fin" validate:"required,gtfield=FechaInicio"`
	MaximoUsos    int            `json:"maximo_usos" bson:"maximo_usos" validate:"required,min=1,max=10000"`
	UsuariosUsos  map[string]int `json:"usuarios_usos" bson:"usuarios_usos"`
	Version       int64          `json:"version" bson:"version"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" bson:"updated_at"`
}

// Vigente reports whether now falls inside [FechaInicio, FechaFin].
func (c *CuponDescuento) Vigente(now time.Time) bool {
	return !now.Before(c.FechaInicio) && !now.After(c.FechaFin)
}

func (c *CuponDescuento) Expired(now time.Time) bool {
	return now.After(c.FechaFin)
}

func (c *CuponDescuento) UsosDe(userID string) (int, bool) {
	n, ok := c.UsuariosUsos[userID]
	return n, ok
}

// MaxUsosPorUsuario is the highest usage count recorded for any one user.
func (c *CuponDescuento) MaxUsosPorUsuario() int {
	highest := 0
	for _, n := range c.UsuariosUsos {
		highest = max(highest, n)
	}
	return highest
}

func (c *CuponDescuento) TotalUsos() int {
	total := 0
	for _, n := range c.UsuariosUsos {
		total += n
	}
	return total
}

type CuponUpdate struct {
	Codigo        *string        `json:"codigo,omitempty" validate:"omitempty,codigo"`
	TipoDescuento *TipoDescuento `json:"tipo_descuento,omitempty" validate:"omitempty,oneof=porcentaje monto_fijo"`
	Valor         *float64       `json:"valor,omitempty" validate:"omitempty,gt=0"`
	FechaInicio   *time.Time     `json:"fecha_inicio,omitempty"`
	FechaFin      *time.Time     `json:"fecha_fin,omitempty"`
	MaximoUsos    *int           `json:"maximo_usos,omitempty" validate:"omitempty,min=1,max=10000"`
}

type CuponCheck struct {
	CentroID string  `json:"centro_id" validate:"required,max=64"`
	Codigo   string  `json:"codigo" validate:"required,max=40"`
	Total    float64 `json:"total" validate:"gte=0"`
}

type CuponCheckResult struct {
	CuponID    string  `json:"cupon_id"`
	Codigo     string  `json:"codigo"`
	Descuento  float64 `json:"descuento"`
	TotalFinal float64 `json:"total_final"`
	UsosUsados int     `json:"usos_usados"`
	MaximoUsos int     `json:"maximo_usos"`
}
