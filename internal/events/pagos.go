package events

import (
	"context"
	"strings"

	"canchas/pkg/identity"
	"canchas/pkg/kafka"
	"canchas/pkg/logger"
)

type PagoConfirmadoEvent struct {
	ReservaID string  `json:"reserva_id"`
	PagoID    string  `json:"pago_id,omitempty"`
	Monto     float64 `json:"monto,omitempty"`
}

// PaymentConfirmer marks a reserva as paid. Confirming an already paid
// reserva must succeed.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, reservaID string) error
}

// PagoHandler returns the consumer handler for the pagos topic. Messages of
// other types are skipped; undecodable ones are permanent failures.
func PagoHandler(confirmer PaymentConfirmer, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if t := msg.GetEventType(); t != "" && t != PagoConfirmado {
			log.Debug("Skipping pagos event", "event_type", t, "key", msg.Key)
			return nil
		}

		var evt PagoConfirmadoEvent
		if err := msg.DecodeValue(&evt); err != nil {
			return kafka.NewPermanentError("deserialization failed for pago.confirmado", err)
		}
		evt.ReservaID = strings.TrimSpace(evt.ReservaID)
		if evt.ReservaID == "" {
			return kafka.NewPermanentError("invalid message: pago.confirmado without reserva_id", nil)
		}

		ctx = identity.WithIdentity(ctx, identity.System())
		if err := confirmer.ConfirmPayment(ctx, evt.ReservaID); err != nil {
			log.Warn("Failed to confirm payment",
				"reserva_id", evt.ReservaID,
				"pago_id", evt.PagoID,
				"error", err,
			)
			return err
		}

		log.Info("Payment confirmed", "reserva_id", evt.ReservaID, "pago_id", evt.PagoID)
		return nil
	}
}
