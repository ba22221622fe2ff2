package cli

import (
	"context"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/core/ports"
)

// StageSubscriber is the stage event feed, normally a NATS subject.
type StageSubscriber interface {
	SubscribeStageEvents(ctx context.Context, handler func(context.Context, domain.StageEvent) error) error
}

// Follow forwards every received stage event to observers until ctx is done.
func Follow(ctx context.Context, sub StageSubscriber, observers ...ports.StageObserver) error {
	return sub.SubscribeStageEvents(ctx, func(ctx context.Context, event domain.StageEvent) error {
		for _, o := range observers {
			o.OnStage(ctx, event)
		}
		return nil
	})
}
