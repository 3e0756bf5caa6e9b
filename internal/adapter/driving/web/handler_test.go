package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fwchecks/internal/application"
	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// --- Mock implementations ---

type stubChangeStore struct {
	changes []model.TrackedChange
	listErr error
}

func (s *stubChangeStore) Add(context.Context, model.ChangeRef) error { return nil }
func (s *stubChangeStore) Touch(context.Context, model.ChangeRef, time.Time) error {
	return nil
}
func (s *stubChangeStore) MarkPolled(context.Context, string, string, model.CIStatus, time.Time) error {
	return nil
}
func (s *stubChangeStore) Remove(context.Context, string, string) error { return nil }
func (s *stubChangeStore) DeleteSeenBefore(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *stubChangeStore) Get(_ context.Context, changeNumber, patchset string) (*model.TrackedChange, error) {
	for _, c := range s.changes {
		if c.Ref.ChangeNumber == changeNumber && c.Ref.Patchset == patchset {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubChangeStore) ListAll(context.Context) ([]model.TrackedChange, error) {
	return s.changes, s.listErr
}

type stubRunStore struct {
	runs map[int64][]model.CheckRun
}

func (s *stubRunStore) ReplaceRuns(context.Context, int64, []model.CheckRun) error { return nil }
func (s *stubRunStore) GetRuns(_ context.Context, changeID int64) ([]model.CheckRun, error) {
	return s.runs[changeID], nil
}

type stubRefresher struct {
	err       error
	refreshed []string
	schedules map[string]application.ScheduleInfo
}

func (s *stubRefresher) RefreshChange(_ context.Context, changeNumber, patchset string) error {
	s.refreshed = append(s.refreshed, changeNumber+"/"+patchset)
	return s.err
}

func (s *stubRefresher) Schedule(changeNumber, patchset string) (application.ScheduleInfo, bool) {
	info, ok := s.schedules[changeNumber+"/"+patchset]
	return info, ok
}

type nopCIClient struct{}

func (nopCIClient) FetchJobRequests(context.Context, model.ChangeRef) ([]model.JobRequest, error) {
	return nil, nil
}

// --- Fixture ---

var seenAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func trackedChange() model.TrackedChange {
	return model.TrackedChange{
		ID:         1,
		Ref:        model.ChangeRef{ChangeNumber: "4821", Patchset: "3", Project: "firmware/bootloader", CommitHash: "9f2c1e7ab44d"},
		CIStatus:   model.CIStatusFailing,
		LastSeenAt: seenAt,
		PolledAt:   seenAt.Add(time.Minute),
		AddedAt:    seenAt,
	}
}

func sampleRuns() []model.CheckRun {
	started := seenAt
	finished := seenAt.Add(90 * time.Second)
	return []model.CheckRun{
		{
			ExternalID: "r2", CheckName: "smoke", Attempt: 2, Status: model.RunStatusCompleted,
			StatusDescription: "1 jobs (1 failed)", StartedAt: &started, FinishedAt: &finished,
			StatusLink: "https://ci.example.com/job-requests/r2",
			Results: []model.CheckResult{{
				Name: "wdt", Category: model.CategoryError, Summary: "watchdog **reset**",
				Tags: []model.Tag{{Name: "failed", Color: model.TagColorPink}},
			}},
		},
		{ExternalID: "r1", CheckName: "smoke", Attempt: 1, Status: model.RunStatusCompleted},
	}
}

type fixture struct {
	handler   *Handler
	mux       *http.ServeMux
	changes   *stubChangeStore
	refresher *stubRefresher
}

func newFixture(t *testing.T, client driven.CIClient) *fixture {
	t.Helper()

	changes := &stubChangeStore{changes: []model.TrackedChange{trackedChange()}}
	runs := &stubRunStore{runs: map[int64][]model.CheckRun{1: sampleRuns()}}
	refresher := &stubRefresher{schedules: map[string]application.ScheduleInfo{
		"4821/3": {Tier: application.TierSettled, LastPolled: seenAt},
	}}

	h := NewHandler(
		changes,
		application.NewStatusService(changes, runs),
		refresher,
		application.NewCIClientProvider(client),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	mux := http.NewServeMux()
	RegisterRoutes(mux, h)

	return &fixture{handler: h, mux: mux, changes: changes, refresher: refresher}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestDashboard_ListsTrackedChanges(t *testing.T) {
	f := newFixture(t, nopCIClient{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `href="/app/changes/4821/3"`)
	assert.Contains(t, body, "firmware/bootloader")
	assert.Contains(t, body, "9f2c1e7")
	assert.NotContains(t, body, "9f2c1e7ab44d")
	assert.Contains(t, body, "settled")
	assert.NotContains(t, body, "credentials are not configured")
}

func TestDashboard_WarnsWhenCIClientMissing(t *testing.T) {
	f := newFixture(t, nil)
	f.changes.changes = nil

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "credentials are not configured")
	assert.Contains(t, rec.Body.String(), "No changes tracked yet")
}

func TestDashboard_StoreErrorIs500(t *testing.T) {
	f := newFixture(t, nopCIClient{})
	f.changes.listErr = errors.New("disk gone")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDashboard_EscapesProjectName(t *testing.T) {
	f := newFixture(t, nopCIClient{})
	f.changes.changes[0].Ref.Project = "<script>alert(1)</script>"

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
}

func TestChangeDetail_RendersRunsAndIssuesCSRFCookie(t *testing.T) {
	f := newFixture(t, nopCIClient{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/app/changes/4821/3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>reset</strong>")
	assert.Contains(t, body, `class="run superseded"`)
	assert.Contains(t, body, `action="/app/changes/4821/3/refresh"`)
	assert.Contains(t, body, "1m30s")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, csrfCookieName, cookies[0].Name)
	assert.Contains(t, body, `value="`+cookies[0].Value+`"`)
}

func TestChangeDetail_ReusesExistingCSRFCookie(t *testing.T) {
	f := newFixture(t, nopCIClient{})
	req := httptest.NewRequest(http.MethodGet, "/app/changes/4821/3", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})

	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.Contains(t, rec.Body.String(), `value="existing-token"`)
}

func TestChangeDetail_UntrackedIs404(t *testing.T) {
	f := newFixture(t, nopCIClient{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/app/changes/9999/1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func refreshRequest(token, cookie string) *http.Request {
	form := url.Values{csrfFormField: {token}}
	req := httptest.NewRequest(http.MethodPost, "/app/changes/4821/3/refresh", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: cookie})
	}
	return req
}

func TestRefreshChange_RedirectsAfterRefresh(t *testing.T) {
	f := newFixture(t, nopCIClient{})

	rec := f.do(refreshRequest("tok", "tok"))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/changes/4821/3?flash=Refreshed.", rec.Header().Get("Location"))
	assert.Equal(t, []string{"4821/3"}, f.refresher.refreshed)
}

func TestRefreshChange_FailureIsFlashed(t *testing.T) {
	f := newFixture(t, nopCIClient{})
	f.refresher.err = application.ErrPollFailed

	rec := f.do(refreshRequest("tok", "tok"))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Refresh failed: poll failed", loc.Query().Get("flash"))
}

func TestRefreshChange_UntrackedIs404(t *testing.T) {
	f := newFixture(t, nopCIClient{})
	f.refresher.err = driven.ErrChangeNotFound

	rec := f.do(refreshRequest("tok", "tok"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshChange_RejectsBadCSRF(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		cookie string
	}{
		{name: "no cookie", token: "tok"},
		{name: "mismatch", token: "tok", cookie: "other"},
		{name: "empty form", cookie: "tok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nopCIClient{})

			rec := f.do(refreshRequest(tt.token, tt.cookie))

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Empty(t, f.refresher.refreshed)
		})
	}
}

func TestChangeDetail_ShowsFlash(t *testing.T) {
	f := newFixture(t, nopCIClient{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/app/changes/4821/3?flash=Refreshed.", nil))

	assert.Contains(t, rec.Body.String(), `<p class="banner">Refreshed.</p>`)
}

func TestStaticAssetsServed(t *testing.T) {
	f := newFixture(t, nopCIClient{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}
