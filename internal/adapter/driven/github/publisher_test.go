package github_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/fwchecks/internal/adapter/driven/github"
	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

type statusRequest struct {
	path        string
	auth        string
	State       string `json:"state"`
	TargetURL   string `json:"target_url"`
	Description string `json:"description"`
	Context     string `json:"context"`
}

type statusRecorder struct {
	mu       sync.Mutex
	requests []statusRequest
}

func (r *statusRecorder) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body statusRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		body.path = req.Method + " " + req.URL.Path
		body.auth = req.Header.Get("Authorization")

		r.mu.Lock()
		r.requests = append(r.requests, body)
		r.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1, "state": "` + body.State + `"}`))
	})
}

func newTestPublisher(t *testing.T, handler http.Handler) *ghAdapter.Publisher {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	pub, err := ghAdapter.NewPublisherWithHTTPClient(server.Client(), server.URL+"/", "test-token", "acme/firmware")
	require.NoError(t, err)
	return pub
}

var testChange = model.ChangeRef{ChangeNumber: "4821", Patchset: "3", CommitHash: "9f2c1e7ab44d"}

func TestPublishRunStatus_SendsCommitStatus(t *testing.T) {
	rec := &statusRecorder{}
	pub := newTestPublisher(t, rec.handler(t))

	run := model.CheckRun{
		ExternalID:        "r9",
		CheckName:         "regression",
		Status:            model.RunStatusCompleted,
		StatusDescription: "2 jobs (2 succeeded)",
		StatusLink:        "https://ci.example.com/job-requests/r9",
		Results: []model.CheckResult{
			{Category: model.CategorySuccess},
			{Category: model.CategorySuccess},
		},
	}

	require.NoError(t, pub.PublishRunStatus(t.Context(), testChange, run))

	require.Len(t, rec.requests, 1)
	got := rec.requests[0]
	assert.Equal(t, "POST /repos/acme/firmware/statuses/9f2c1e7ab44d", got.path)
	assert.Equal(t, "Bearer test-token", got.auth)
	assert.Equal(t, "success", got.State)
	assert.Equal(t, "fwchecks/regression", got.Context)
	assert.Equal(t, "2 jobs (2 succeeded)", got.Description)
	assert.Equal(t, "https://ci.example.com/job-requests/r9", got.TargetURL)
}

func TestPublishRunStatus_TruncatesDescription(t *testing.T) {
	rec := &statusRecorder{}
	pub := newTestPublisher(t, rec.handler(t))

	run := model.CheckRun{ExternalID: "r1", Status: model.RunStatusRunning, StatusDescription: strings.Repeat("x", 200)}
	require.NoError(t, pub.PublishRunStatus(t.Context(), testChange, run))

	require.Len(t, rec.requests, 1)
	assert.Len(t, []rune(rec.requests[0].Description), 140)
	assert.Equal(t, "fwchecks/r1", rec.requests[0].Context, "falls back to the run id")
	assert.Equal(t, "pending", rec.requests[0].State)
}

func TestPublishRunStatus_RequiresCommitHash(t *testing.T) {
	rec := &statusRecorder{}
	pub := newTestPublisher(t, rec.handler(t))

	err := pub.PublishRunStatus(t.Context(), model.ChangeRef{ChangeNumber: "1", Patchset: "1"}, model.CheckRun{})
	require.Error(t, err)
	assert.Empty(t, rec.requests)
}

func TestPublishRunStatus_APIError(t *testing.T) {
	pub := newTestPublisher(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "No commit found for SHA"}`))
	}))

	err := pub.PublishRunStatus(t.Context(), testChange, model.CheckRun{CheckName: "smoke"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fwchecks/smoke")
}

func TestStatusState(t *testing.T) {
	tests := []struct {
		name string
		run  model.CheckRun
		want string
	}{
		{"running", model.CheckRun{Status: model.RunStatusRunning}, "pending"},
		{"scheduled", model.CheckRun{Status: model.RunStatusScheduled}, "pending"},
		{"completed without results", model.CheckRun{Status: model.RunStatusCompleted}, "success"},
		{
			"failed job",
			model.CheckRun{Status: model.RunStatusCompleted, Results: []model.CheckResult{
				{Category: model.CategoryWarning}, {Category: model.CategoryError},
			}},
			"failure",
		},
		{
			"aborted job",
			model.CheckRun{Status: model.RunStatusCompleted, Results: []model.CheckResult{
				{Category: model.CategorySuccess}, {Category: model.CategoryWarning},
			}},
			"error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ghAdapter.StatusState(tt.run))
		})
	}
}

func TestNewPublisher_RejectsBadRepo(t *testing.T) {
	for _, repo := range []string{"", "acme", "/firmware", "acme/"} {
		_, err := ghAdapter.NewPublisher("tok", repo)
		assert.Error(t, err, repo)
	}
}
