// notification/service.go
package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/pipeline"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/util"
)

// Sender delivers a terminal outcome to whoever watches the pipeline: a
// chat webhook, an incident tracker, email. The default sender logs.
type Sender func(ctx context.Context, outcome model.Outcome) error

// Service subscribes to the pipeline's lifecycle events and turns them
// into notifications. It observes runs; it never influences them.
type Service struct {
	send Sender
}

func NewService(eventBus *util.EventBus, send Sender) *Service {
	service := &Service{send: send}
	if service.send == nil {
		service.send = logSender
	}

	eventBus.Subscribe(pipeline.EventStateChanged, service.handleStateChanged)
	eventBus.Subscribe(pipeline.EventFinished, service.handleRunFinished)

	return service
}

func (s *Service) handleStateChanged(ctx context.Context, event util.Event) error {
	change, ok := event.Payload.(pipeline.StateChange)
	if !ok {
		return fmt.Errorf("unexpected payload type for event %s", event.Type)
	}
	logger.Info("NOTIFICATION: Pipeline state changed",
		zap.String("runID", change.RunID),
		zap.String("change", change.Change.String()),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)))
	return nil
}

func (s *Service) handleRunFinished(ctx context.Context, event util.Event) error {
	outcome, ok := event.Payload.(model.Outcome)
	if !ok {
		return fmt.Errorf("unexpected payload type for event %s", event.Type)
	}
	return s.send(ctx, outcome)
}

func logSender(ctx context.Context, outcome model.Outcome) error {
	logger.Info("NOTIFICATION: Pipeline run finished",
		zap.String("runID", outcome.RunID),
		zap.String("change", outcome.Change.String()),
		zap.String("state", outcome.State),
		zap.String("applyResult", string(outcome.ApplyResult)))
	return nil
}
