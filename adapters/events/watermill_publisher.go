package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/garuda/core"
	"github.com/layer-3/garuda/ports"
)

// ValidatedTopic is the topic validation events are published to
const ValidatedTopic = "garuda.validated"

// ValidationEvent represents a successfully validated token
type ValidationEvent struct {
	Address       string `json:"address"`
	SignerAddress string `json:"signer_address"`
	Origin        string `json:"origin"`
	Issued        int64  `json:"issued"`
	Expires       int64  `json:"expires"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     ValidatedTopic,
	}
}

// PublishValidation publishes a validation event
func (p *WatermillPublisher) PublishValidation(ctx context.Context, result *core.ValidationResult) error {
	event := ValidationEvent{
		Address:       result.Address,
		SignerAddress: result.SignerAddress,
		Origin:        result.Origin,
		Issued:        result.Issued,
		Expires:       result.Expires,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
