package kafka

import (
	"errors"
	"fmt"
	"testing"

	apperrors "canchas/pkg/errors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"transient kafka error", NewTransientError("write failed", nil), ErrorTypeTransient},
		{"network timeout", errors.New("dial tcp: I/O Timeout"), ErrorTypeTransient},
		{"schema mismatch", errors.New("schema mismatch on field total"), ErrorTypePermanent},
		{"lost cas race", apperrors.ConcurrentModification("Reserva", "r-1"), ErrorTypeTransient},
		{"invalid state", apperrors.InvalidState("reserva already Pagado"), ErrorTypeBusiness},
		{"not found", apperrors.NotFoundWithID("Reserva", "r-1"), ErrorTypeBusiness},
		{"storage outage", apperrors.Internal("Failed to retrieve reserva", errors.New("server selection error")), ErrorTypeTransient},
		{"wrapped storage outage", fmt.Errorf("confirm: %w", apperrors.Internal("Failed to update reserva", nil)), ErrorTypeTransient},
		{"unavailable", apperrors.New(apperrors.CodeUnavailable, "mongo down", 503), ErrorTypeTransient},
		{"unclassified", errors.New("something odd"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	transient := NewTransientError("broker unavailable", nil)

	if !ShouldRetry(transient, 0, 3) {
		t.Error("expected retry on first transient failure")
	}
	if ShouldRetry(transient, 3, 3) {
		t.Error("expected no retry once max retries reached")
	}
	if ShouldRetry(apperrors.NotFound("Reserva"), 0, 3) {
		t.Error("expected no retry for not found")
	}
}

func TestMessageRetryCount(t *testing.T) {
	msg := NewMessage().WithKey("r-1").WithValue(map[string]string{"a": "b"}).Build()

	if msg.GetRetryCount() != 0 {
		t.Fatalf("fresh message retry count = %d", msg.GetRetryCount())
	}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if msg.GetRetryCount() != 12 {
		t.Errorf("retry count = %d, want 12", msg.GetRetryCount())
	}
	if msg.GetEventID() == "" {
		t.Error("Build should assign an event id")
	}
}

func TestMessageBuilder_EncodeError(t *testing.T) {
	_, err := NewMessage().WithKey("r-1").WithValue(make(chan int)).BuildE()
	if err == nil {
		t.Error("expected encode error for unsupported value")
	}
}
