package validators

import "go.mongodb.org/mongo-driver/bson"

var CuponValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"centro_id",
			"codigo",
			"tipo_descuento",
			"valor",
			"fecha_inicio",
			"fecha_fin",
			"maximo_usos",
			"usuarios_usos",
			"version",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"centro_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"codigo": bson.M{
				"bsonType": "string",
				"pattern":  `^[A-Z0-9][A-Z0-9_-]{2,39}$`,
			},
			"tipo_descuento": bson.M{
				"bsonType": "string",
				"enum":     []string{"porcentaje", "monto_fijo"},
			},
			"valor": bson.M{
				"bsonType":         "double",
				"exclusiveMinimum": true,
				"minimum":          0,
			},
			"fecha_inicio": bson.M{
				"bsonType": "date",
			},
			"fecha_fin": bson.M{
				"bsonType": "date",
			},
			"maximo_usos": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  10000,
			},
			"usuarios_usos": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "int",
					"minimum":  0,
				},
			},
			"version": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},
		},
	},
}
