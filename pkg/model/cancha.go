package model

type Cancha struct {
	ID            string  `json:"id" bson:"_id"`
	CentroID      string  `json:"centro_id" bson:"centro_id"`
	Nombre        string  `json:"nombre" bson:"nombre"`
	PrecioPorHora float64 `json:"precio_por_hora" bson:"precio_por_hora"`
	Capacidad     int     `json:"capacidad" bson:"capacidad"`
}
