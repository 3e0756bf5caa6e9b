// Package github mirrors check run state to GitHub commit statuses.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StatusPublisher = (*Publisher)(nil)

// contextPrefix namespaces every status this service writes.
const contextPrefix = "fwchecks/"

// maxDescriptionLen is GitHub's limit for commit status descriptions.
const maxDescriptionLen = 140

// Commit status states accepted by the GitHub API.
const (
	statePending = "pending"
	stateSuccess = "success"
	stateFailure = "failure"
	stateError   = "error"
)

// Publisher writes commit statuses to a single GitHub repository.
type Publisher struct {
	gh    *gh.Client
	owner string
	repo  string
}

// NewPublisher creates a Publisher for repoFullName ("owner/repo") with the
// following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewPublisher(token, repoFullName string) (*Publisher, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	return &Publisher{
		gh:    gh.NewClient(rateLimitClient).WithAuthToken(token),
		owner: owner,
		repo:  repo,
	}, nil
}

// NewPublisherWithHTTPClient creates a Publisher with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewPublisherWithHTTPClient(httpClient *http.Client, baseURL, token, repoFullName string) (*Publisher, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	client := gh.NewClient(httpClient).WithAuthToken(token)
	client.BaseURL = u

	return &Publisher{gh: client, owner: owner, repo: repo}, nil
}

// PublishRunStatus creates a commit status for run at the change's commit.
func (p *Publisher) PublishRunStatus(ctx context.Context, change model.ChangeRef, run model.CheckRun) error {
	if change.CommitHash == "" {
		return fmt.Errorf("publish status for %s: change has no commit hash", change.Key())
	}

	status := gh.RepoStatus{
		State:       gh.Ptr(StatusState(run)),
		Context:     gh.Ptr(contextPrefix + statusContextName(run)),
		Description: gh.Ptr(truncate(run.StatusDescription, maxDescriptionLen)),
	}
	if run.StatusLink != "" {
		status.TargetURL = gh.Ptr(run.StatusLink)
	}

	_, resp, err := p.gh.Repositories.CreateStatus(ctx, p.owner, p.repo, change.CommitHash, status)
	if err != nil {
		return fmt.Errorf("creating status %s on %s/%s@%s: %w",
			status.GetContext(), p.owner, p.repo, change.CommitHash, err)
	}

	logRateLimit(resp, p.owner+"/"+p.repo+"/statuses")
	slog.Debug("commit status published",
		"change", change.Key(),
		"context", status.GetContext(),
		"state", status.GetState(),
	)

	return nil
}

// StatusState maps a run to a commit status state. Incomplete runs are
// pending; completed runs fail on any ERROR result, turn to error when a
// job was aborted and succeed otherwise.
func StatusState(run model.CheckRun) string {
	if run.Status != model.RunStatusCompleted {
		return statePending
	}

	state := stateSuccess
	for _, res := range run.Results {
		switch res.Category {
		case model.CategoryError:
			return stateFailure
		case model.CategoryWarning:
			state = stateError
		}
	}
	return state
}

func statusContextName(run model.CheckRun) string {
	if run.CheckName != "" {
		return run.CheckName
	}
	return run.ExternalID
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	if resp.Rate.Remaining < 100 && resp.Rate.Limit > 0 {
		slog.Warn("github rate limit low",
			"endpoint", endpoint,
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
