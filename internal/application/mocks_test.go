package application_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockCIClient struct {
	mu      sync.Mutex
	fetch   func(ctx context.Context, change model.ChangeRef) ([]model.JobRequest, error)
	fetched []model.ChangeRef
}

func (m *mockCIClient) FetchJobRequests(ctx context.Context, change model.ChangeRef) ([]model.JobRequest, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, change)
	m.mu.Unlock()
	if m.fetch == nil {
		return nil, nil
	}
	return m.fetch(ctx, change)
}

func (m *mockCIClient) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetched)
}

// userError mimics the CI adapter's HTTP error.
type userError struct {
	status int
	msg    string
}

func (e *userError) Error() string       { return "CI service returned " + e.msg }
func (e *userError) UserMessage() string { return e.msg }

type mockChangeStore struct {
	mu      sync.Mutex
	changes map[string]*model.TrackedChange
	nextID  int64
	pruned  []time.Time
}

func newMockChangeStore(refs ...model.ChangeRef) *mockChangeStore {
	m := &mockChangeStore{changes: make(map[string]*model.TrackedChange)}
	for _, ref := range refs {
		_ = m.Add(context.Background(), ref)
	}
	return m
}

func (m *mockChangeStore) Add(_ context.Context, ref model.ChangeRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.changes[ref.Key()]; ok {
		return driven.ErrChangeAlreadyTracked
	}
	m.nextID++
	now := time.Now()
	m.changes[ref.Key()] = &model.TrackedChange{ID: m.nextID, Ref: ref, CIStatus: model.CIStatusUnknown, LastSeenAt: now, AddedAt: now}
	return nil
}

func (m *mockChangeStore) Touch(ctx context.Context, ref model.ChangeRef, seenAt time.Time) error {
	if err := m.Add(ctx, ref); err != nil && !errors.Is(err, driven.ErrChangeAlreadyTracked) {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes[ref.Key()].LastSeenAt = seenAt
	return nil
}

func (m *mockChangeStore) MarkPolled(_ context.Context, changeNumber, patchset string, status model.CIStatus, polledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.changes[changeNumber+"/"+patchset]
	if !ok {
		return driven.ErrChangeNotFound
	}
	c.CIStatus = status
	c.PolledAt = polledAt
	return nil
}

func (m *mockChangeStore) Remove(_ context.Context, changeNumber, patchset string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := changeNumber + "/" + patchset
	if _, ok := m.changes[key]; !ok {
		return driven.ErrChangeNotFound
	}
	delete(m.changes, key)
	return nil
}

func (m *mockChangeStore) Get(_ context.Context, changeNumber, patchset string) (*model.TrackedChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.changes[changeNumber+"/"+patchset]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockChangeStore) ListAll(_ context.Context) ([]model.TrackedChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TrackedChange, 0, len(m.changes))
	for _, c := range m.changes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockChangeStore) DeleteSeenBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, cutoff)
	var n int
	for key, c := range m.changes {
		if c.LastSeenAt.Before(cutoff) {
			delete(m.changes, key)
			n++
		}
	}
	return n, nil
}

type mockRunStore struct {
	mu       sync.Mutex
	runs     map[int64][]model.CheckRun
	replaces int
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: make(map[int64][]model.CheckRun)}
}

func (m *mockRunStore) ReplaceRuns(_ context.Context, changeID int64, runs []model.CheckRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaces++
	m.runs[changeID] = runs
	return nil
}

func (m *mockRunStore) GetRuns(_ context.Context, changeID int64) ([]model.CheckRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[changeID], nil
}

type publishCall struct {
	Change model.ChangeRef
	Run    model.CheckRun
}

type mockPublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (m *mockPublisher) PublishRunStatus(_ context.Context, change model.ChangeRef, run model.CheckRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, publishCall{Change: change, Run: run})
	return nil
}

func (m *mockPublisher) published() []publishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishCall(nil), m.calls...)
}

type mockSubmitter struct {
	loginErr  error
	token     string
	workflow  *model.Workflow
	uploads   map[string]string
	created   *model.JobSubmission
	createErr error
}

func (m *mockSubmitter) Login(_ context.Context, email, password string) (string, error) {
	if m.loginErr != nil {
		return "", m.loginErr
	}
	return "token-for-" + email, nil
}

func (m *mockSubmitter) SetToken(token string) { m.token = token }

func (m *mockSubmitter) GetWorkflow(_ context.Context, workflowID string) (*model.Workflow, error) {
	if m.workflow == nil {
		return nil, &userError{status: 404, msg: "workflow not found"}
	}
	return m.workflow, nil
}

func (m *mockSubmitter) UploadBinary(_ context.Context, name, filename string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if m.uploads == nil {
		m.uploads = make(map[string]string)
	}
	m.uploads[name] = filename + ":" + string(data)
	return "bin-" + name, nil
}

func (m *mockSubmitter) CreateJobRequest(_ context.Context, sub model.JobSubmission) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = &sub
	return "jr-1", nil
}

type mockBinarySource struct {
	prefix string
	files  map[string]string
}

func (m *mockBinarySource) Supports(location string) bool {
	return strings.HasPrefix(location, m.prefix)
}

func (m *mockBinarySource) Open(_ context.Context, location string) (*driven.Binary, error) {
	content, ok := m.files[location]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	name := location[strings.LastIndex(location, "/")+1:]
	return &driven.Binary{
		Filename: name,
		Size:     int64(len(content)),
		Body:     io.NopCloser(strings.NewReader(content)),
	}, nil
}

type countingRecorder struct {
	mu      sync.Mutex
	cycles  int
	tracked int
	ok      int
	failed  int
}

func (r *countingRecorder) PollCycle(_, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
}

func (r *countingRecorder) TrackedChanges(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = n
}

func (r *countingRecorder) ChangePolled(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.ok++
	} else {
		r.failed++
	}
}
