package messaging

import (
	"context"
	"errors"

	"arena-server/internal/models"
)

type fanOutPublisher struct {
	targets []ClientUpdatePublisher
}

// FanOut combines publishers so one turn update reaches every transport
// (queue for downstream consumers, WebSocket for live spectators). Each
// target is attempted; errors are joined.
func FanOut(targets ...ClientUpdatePublisher) ClientUpdatePublisher {
	return &fanOutPublisher{targets: targets}
}

func (p *fanOutPublisher) PublishTurnUpdate(ctx context.Context, payload models.TurnUpdate) error {
	var errs []error
	for _, target := range p.targets {
		if err := target.PublishTurnUpdate(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
