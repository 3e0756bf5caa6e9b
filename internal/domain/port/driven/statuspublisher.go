package driven

import (
	"context"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

// StatusPublisher mirrors check run state to an external commit status API.
type StatusPublisher interface {
	// PublishRunStatus publishes the state of run at the change's commit.
	PublishRunStatus(ctx context.Context, change model.ChangeRef, run model.CheckRun) error
}
