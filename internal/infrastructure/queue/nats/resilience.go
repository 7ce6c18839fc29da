package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const publishOp = "publish intake job"

// connectionErrors clear up once the client reconnects; the job can be published again.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
	nats.ErrConnectionDraining,
}

// classifyPublishError decides whether a failed intake job publish is retried and
// whether it counts against the breaker. An oversized job or a bad subject is our
// own fault, so it neither retries nor trips the circuit.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isConnectionError(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isConnectionError(err error) bool {
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// publishError maps a final publish failure onto the domain taxonomy: broker
// outages are temporary (503), a job over the server payload limit is rejected
// as invalid input.
func publishError(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrInvalidInput):
		return err
	case errors.Is(err, nats.ErrMaxPayload):
		return domain.WrapError(domain.ErrInvalidInput, publishOp, err)
	case resilience.IsCircuitOpen(err), isConnectionError(err):
		return domain.WrapError(domain.ErrTemporary, publishOp, err)
	default:
		return err
	}
}
