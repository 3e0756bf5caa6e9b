package ciservice_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fwchecks/internal/adapter/driven/ciservice"
	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

var change = model.ChangeRef{ChangeNumber: "4821", Patchset: "3", Project: "fw/boot", CommitHash: "9f2c1e7"}

// setupTestServer creates an httptest server and a Client pointing to it.
func setupTestServer(t *testing.T, handler http.Handler) *ciservice.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ciservice.NewClientWithHTTPClient(server.Client(), server.URL+"/api/v2", "secret-token")
	require.NoError(t, err)
	return client
}

func TestFetchJobRequests_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/job-requests/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{
			"change_number": "4821",
			"patchset":      "3",
			"project":       "fw/boot",
			"commit_hash":   "9f2c1e7",
		}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[
			{"id":17,"workflow_id":"W1","workflow_name":"smoke","status":"running",
			 "start_time":"2026-03-01T10:00:00Z","duration":"1m5s","created_at":"2026-03-01T09:59:00Z",
			 "jobs":[{"id":"j1","status":"failed","error":"timeout","test":{"name":"boot","description":"boots"}},
			         {"id":2,"status":"queued"}]},
			{"id":"16","status":"succeeded","start_time":"0001-01-01T00:00:00Z"}
		]}`)
	})
	client := setupTestServer(t, mux)

	requests, err := client.FetchJobRequests(context.Background(), change)
	require.NoError(t, err)
	require.Len(t, requests, 2)

	first := requests[0]
	assert.Equal(t, "17", first.ID)
	assert.Equal(t, "W1", first.WorkflowID)
	assert.Equal(t, "smoke", first.WorkflowName)
	assert.Equal(t, model.JobRequestRunning, first.Status)
	assert.Equal(t, "2026-03-01T10:00:00Z", first.StartTime)
	assert.Equal(t, "1m5s", first.Duration)
	assert.False(t, first.CreatedAt.IsZero())
	require.Len(t, first.Jobs, 2)
	assert.Equal(t, "timeout", first.Jobs[0].Error)
	assert.Equal(t, "boot", first.Jobs[0].Test.Name)
	assert.Equal(t, "2", first.Jobs[1].ID)
	assert.Nil(t, first.Jobs[1].Test)

	second := requests[1]
	assert.Equal(t, "16", second.ID)
	assert.Empty(t, second.WorkflowID)
	assert.True(t, second.CreatedAt.IsZero())
	assert.NotNil(t, second.Jobs)
}

func TestFetchJobRequests_EmptyData(t *testing.T) {
	bodies := map[string]string{
		"empty array":  `{"data":[]}`,
		"null data":    `{"data":null}`,
		"missing data": `{}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			}))

			requests, err := client.FetchJobRequests(context.Background(), change)
			require.NoError(t, err)
			assert.NotNil(t, requests)
			assert.Empty(t, requests)
		})
	}
}

func TestFetchJobRequests_HTTPErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json error field", http.StatusInternalServerError, `{"error":"db down"}`, "db down"},
		{"empty error field", http.StatusBadGateway, `{"error":""}`, "HTTP 502"},
		{"html body", http.StatusServiceUnavailable, `<html>oops</html>`, "HTTP 503"},
		{"no body", http.StatusUnauthorized, ``, "HTTP 401"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := client.FetchJobRequests(context.Background(), change)
			require.Error(t, err)

			var herr *ciservice.HTTPError
			require.ErrorAs(t, err, &herr)
			assert.Equal(t, tt.status, herr.StatusCode)
			assert.Equal(t, tt.wantMsg, herr.Message)
			assert.Equal(t, tt.wantMsg, driven.ErrorMessage(err))
		})
	}
}

func TestFetchJobRequests_MalformedPayload(t *testing.T) {
	bodies := map[string]string{
		"not json":        `{"data":`,
		"data not array":  `{"data":{"id":1}}`,
		"bad job list":    `{"data":[{"id":"1","jobs":"none"}]}`,
		"boolean id":      `{"data":[{"id":true}]}`,
		"empty 200 reply": ``,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			}))

			_, err := client.FetchJobRequests(context.Background(), change)
			require.ErrorIs(t, err, driven.ErrMalformedPayload)
		})
	}
}

func TestFetchJobRequests_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client, err := ciservice.NewClientWithHTTPClient(server.Client(), server.URL, "")
	require.NoError(t, err)
	server.Close()

	_, err = client.FetchJobRequests(context.Background(), change)
	require.Error(t, err)

	var herr *ciservice.HTTPError
	assert.NotErrorAs(t, err, &herr)
	assert.Contains(t, err.Error(), "/job-requests/query")
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := ciservice.NewClient("ci.example.com/api", "")
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	client := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/auth/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"tok-1"}`)
	}))

	token, err := client.Login(context.Background(), "dev@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	_, err = client.Login(context.Background(), "dev@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "invalid credentials", driven.ErrorMessage(err))
}

func TestGetWorkflow(t *testing.T) {
	client := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path != "/api/v2/workflows/wf-42" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"workflow not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"wf-42","name":"smoke","description":"Boot smoke test"}`)
	}))

	wf, err := client.GetWorkflow(context.Background(), "wf-42")
	require.NoError(t, err)
	assert.Equal(t, &model.Workflow{ID: "wf-42", Name: "smoke", Description: "Boot smoke test"}, wf)

	_, err = client.GetWorkflow(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "workflow not found", driven.ErrorMessage(err))
}

func TestUploadBinary(t *testing.T) {
	client := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/binaries", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "bootloader", r.FormValue("name"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		assert.Equal(t, "boot.bin", header.Filename)
		assert.Equal(t, "\x7fELF-firmware", string(data))
		_, _ = io.WriteString(w, `{"id":991}`)
	}))

	id, err := client.UploadBinary(context.Background(), "bootloader", "boot.bin", strings.NewReader("\x7fELF-firmware"))
	require.NoError(t, err)
	assert.Equal(t, "991", id)
}

func TestCreateJobRequest(t *testing.T) {
	var keys []string
	client := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/job-requests", r.URL.Path)
		keys = append(keys, r.Header.Get("Idempotency-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wf-42", body["workflow_id"])
		assert.Equal(t, map[string]any{"app": "991"}, body["binaries"])
		assert.NotContains(t, body, "branch")

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"jr-77"}`)
	}))
	client.SetToken("fresh")

	sub := model.JobSubmission{WorkflowID: "wf-42", CommitHash: "9f2c1e7", BinaryIDs: map[string]string{"app": "991"}, ChangeNumber: "4821"}
	id, err := client.CreateJobRequest(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "jr-77", id)

	_, err = client.CreateJobRequest(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, keys, 2)
	for _, k := range keys {
		_, err := uuid.Parse(k)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, keys[0], keys[1])
}
