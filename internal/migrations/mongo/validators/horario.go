package validators

import "go.mongodb.org/mongo-driver/bson"

const (
	fechaPattern = `^\d{4}-\d{2}-\d{2}$`
	horaPattern  = `^(([01]\d|2[0-3]):[0-5]\d|24:00)$`
)

var HorarioValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"cancha_id",
			"fecha",
			"hora_inicio",
			"hora_fin",
			"estado",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"cancha_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"fecha": bson.M{
				"bsonType": "string",
				"pattern":  fechaPattern,
			},
			"hora_inicio": bson.M{
				"bsonType": "string",
				"pattern":  horaPattern,
			},
			"hora_fin": bson.M{
				"bsonType": "string",
				"pattern":  horaPattern,
			},
			"estado": bson.M{
				"bsonType": "string",
				"enum":     []string{"Disponible", "Reservado", "Pagado", "Ocupado"},
			},
			"reserva_id": bson.M{
				"bsonType": []string{"string", "null"},
			},
			"version": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var HorarioLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"owner", "expires_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"owner": bson.M{
				"bsonType": "string",
			},
			"expires_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
