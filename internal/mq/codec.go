package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
)

var ErrMalformed = errors.New("malformed message")

var validate = validator.New(validator.WithRequiredStructEnabled())

func PublishJSON(ctx context.Context, q Queue, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return q.Push(ctx, topic, body)
}

// ParseMessageJSON decodes and validates a message body. Failures wrap ErrMalformed.
func ParseMessageJSON[T any](msg *Message) (T, error) {
	var payload T
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(payload); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return payload, nil
		}
		return payload, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return payload, nil
}

// PeekEnvelope reads the discriminator fields without decoding the full payload.
func PeekEnvelope(msg *Message) (contracts.Envelope, error) {
	var env contracts.Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}
