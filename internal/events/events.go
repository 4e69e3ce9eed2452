// Package events publishes reserva lifecycle events and consumes payment
// confirmations.
package events

import (
	"context"
	"fmt"
	"time"

	"canchas/pkg/kafka"
	"canchas/pkg/logger"
	"canchas/pkg/model"

	"github.com/google/uuid"
)

const (
	ReservaCreada      = "reserva.creada"
	ReservaActualizada = "reserva.actualizada"
	ReservaPagada      = "reserva.pagada"
	ReservaCancelada   = "reserva.cancelada"

	PagoConfirmado = "pago.confirmado"

	SchemaVersion = "1"
	Source        = "canchas"
)

type ReservaEvent struct {
	Type              string              `json:"type"`
	ReservaID         string              `json:"reserva_id"`
	CanchaID          string              `json:"cancha_id"`
	CentroID          string              `json:"centro_id"`
	UserID            string              `json:"user_id"`
	HorarioIDs        []string            `json:"horario_ids"`
	Fecha             string              `json:"fecha"`
	Estado            model.EstadoReserva `json:"estado"`
	Total             float64             `json:"total"`
	DescuentoAplicado float64             `json:"descuento_aplicado"`
	OccurredAt        time.Time           `json:"occurred_at"`
}

func NewReservaEvent(eventType string, r *model.Reserva) ReservaEvent {
	return ReservaEvent{
		Type:              eventType,
		ReservaID:         r.ID,
		CanchaID:          r.CanchaID,
		CentroID:          r.CentroID,
		UserID:            r.UserID,
		HorarioIDs:        r.HorarioIDs,
		Fecha:             r.Fecha,
		Estado:            r.Estado,
		Total:             r.Total,
		DescuentoAplicado: r.DescuentoAplicado,
		OccurredAt:        time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt ReservaEvent) error
}

type nopPublisher struct{}

// NopPublisher drops every event. Used when Kafka is disabled.
func NopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, ReservaEvent) error { return nil }

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer messagePublisher
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) Publisher {
	return &kafkaPublisher{producer: producer, log: log}
}

// Publish sends evt keyed by reserva id so events of one reserva stay ordered.
func (p *kafkaPublisher) Publish(ctx context.Context, evt ReservaEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(evt.ReservaID).
		WithValue(evt).
		WithEventID(uuid.New().String()).
		WithEventType(evt.Type).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		BuildE()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", evt.Type, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", evt.Type, err)
	}
	return nil
}
