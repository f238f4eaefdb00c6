package ports

import (
	"context"

	"github.com/layer-3/garuda/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishValidation(ctx context.Context, result *core.ValidationResult) error
}
