package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"returns-reconciliation-service/internal/service"
	"returns-reconciliation-service/internal/source"
)

// ErrRejected marks a message that can never be processed and must not be redelivered.
var ErrRejected = errors.New("message rejected")

// PayloadProcessor applies one tagged source payload.
type PayloadProcessor interface {
	ProcessOne(ctx context.Context, env source.Envelope) (service.Outcome, error)
}

// RawPayloadConsumer handles messages of the form {"source":"MARKETPLACE","payload":{...}}.
type RawPayloadConsumer struct {
	processor PayloadProcessor
	log       *zap.Logger
}

func NewRawPayloadConsumer(p PayloadProcessor, log *zap.Logger) *RawPayloadConsumer {
	return &RawPayloadConsumer{processor: p, log: log}
}

// Handle returns ErrRejected for messages that are malformed; any other error is a processing
// failure that a later batch run can retry.
func (c *RawPayloadConsumer) Handle(ctx context.Context, msg []byte) error {
	var env source.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		c.log.Warn("undecodable payload message", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrRejected)
	}

	out, err := c.processor.ProcessOne(ctx, env)
	switch {
	case errors.Is(err, source.ErrMalformedPayload), errors.Is(err, source.ErrUnknownSource):
		c.log.Warn("payload rejected", zap.String("source", string(env.Source)), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRejected, err)
	case err != nil:
		c.log.Error("payload failed", zap.String("source", string(env.Source)), zap.Error(err))
		return err
	}

	c.log.Info("payload applied",
		zap.String("source", string(env.Source)),
		zap.Uint64("return_id", out.ReturnID),
		zap.Bool("created", out.Created),
		zap.String("linked_return_number", out.LinkedReturnNumber))
	return nil
}
