package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
)

// AckCorrelator maps provider-assigned message ids from message-event
// callbacks onto previously stored outbound messages.
type AckCorrelator struct {
	messages domain.MessageRepository
	logger   *slog.Logger
}

func NewAckCorrelator(messages domain.MessageRepository, logger *slog.Logger) *AckCorrelator {
	return &AckCorrelator{
		messages: messages,
		logger:   logger.With("component", "ack_correlator"),
	}
}

// Correlate updates the acknowledgment state of the message identified by
// the provider id. A status event for an unknown or not-yet-persisted
// message is not a fault: webhook delivery carries no ordering guarantee
// against our own persistence, so the miss is logged and dropped.
func (c *AckCorrelator) Correlate(ctx context.Context, providerMsgID string, ack domain.AckStatus) error {
	msg, err := c.messages.GetByID(ctx, providerMsgID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			ackEventsCounter.WithLabelValues("unknown_message").Inc()
			c.logger.InfoContext(ctx, "status event for unknown message, skipping",
				"provider_message_id", providerMsgID, "ack", string(ack))
			return nil
		}
		ackEventsCounter.WithLabelValues("error").Inc()
		return err
	}

	if err := c.messages.UpdateAck(ctx, msg.ID, ack); err != nil {
		ackEventsCounter.WithLabelValues("error").Inc()
		return err
	}

	ackEventsCounter.WithLabelValues("updated").Inc()
	c.logger.InfoContext(ctx, "message acknowledgment updated",
		"provider_message_id", providerMsgID, "ack", string(ack))
	return nil
}
