package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservaValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"cancha_id",
			"centro_id",
			"user_id",
			"horario_ids",
			"fecha",
			"estado",
			"total",
			"descuento_aplicado",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"horario_ids": bson.M{
				"bsonType":    "array",
				"minItems":    1,
				"uniqueItems": true,
				"items": bson.M{
					"bsonType": "string",
				},
			},
			"fecha": bson.M{
				"bsonType": "string",
				"pattern":  fechaPattern,
			},
			"estado": bson.M{
				"bsonType": "string",
				"enum":     []string{"Pendiente", "Pagado", "Cancelado"},
			},
			"total": bson.M{
				"bsonType": "double",
				"minimum":  0,
			},
			"descuento_aplicado": bson.M{
				"bsonType": "double",
				"minimum":  0,
			},
			"codigo_promo_aplicado": bson.M{
				"bsonType": []string{"string", "null"},
			},
			"version": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var CanchaValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"centro_id", "nombre", "precio_por_hora"},
		"properties": bson.M{
			"centro_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"nombre": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"precio_por_hora": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},
		},
	},
}
