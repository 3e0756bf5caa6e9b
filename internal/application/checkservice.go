package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// CheckService answers the review system's checks query for a change: it
// fetches job requests from the CI service and maps them to check runs.
// It keeps no state between calls.
type CheckService struct {
	clients *CIClientProvider
	links   LinkConfig
}

// NewCheckService creates a CheckService reading from the provider's current client.
func NewCheckService(clients *CIClientProvider, links LinkConfig) *CheckService {
	return &CheckService{
		clients: clients,
		links:   links,
	}
}

// Links returns the link configuration used for mapping.
func (s *CheckService) Links() LinkConfig {
	return s.links
}

// Runs fetches and maps the check runs of change. It never fails: every
// problem is reported through an ERROR envelope.
func (s *CheckService) Runs(ctx context.Context, change model.ChangeRef) (resp model.CheckResponse) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("check mapping panicked", "change", change.Key(), "panic", r)
			resp = errorResponse(fmt.Sprintf("internal error: %v", r))
		}
	}()

	client := s.clients.Get()
	if client == nil {
		return errorResponse("CI service credentials are not configured")
	}

	requests, err := client.FetchJobRequests(ctx, change)
	if err != nil {
		slog.Warn("fetch job requests failed", "change", change.Key(), "error", err)
		return errorResponse(driven.ErrorMessage(err))
	}

	runs, err := MapCheckRuns(requests, change, s.links)
	if err != nil {
		slog.Warn("map check runs failed", "change", change.Key(), "error", err)
		return errorResponse(err.Error())
	}

	slog.Debug("check runs mapped", "change", change.Key(), "requests", len(requests), "runs", len(runs))

	return model.CheckResponse{
		ResponseCode: model.ResponseOK,
		Runs:         runs,
	}
}

func errorResponse(msg string) model.CheckResponse {
	return model.CheckResponse{
		ResponseCode: model.ResponseError,
		ErrorMessage: msg,
	}
}
