package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weihanchu/slidecast/internal/store"
	"github.com/weihanchu/slidecast/pkg/models"
)

// mockJobStore covers the job methods the service touches and mimics the
// Postgres semantics: transition checks, monotonic progress, completion
// pinning. The embedded interface panics on anything else.
type mockJobStore struct {
	store.Store

	mu     sync.Mutex
	jobs   map[uuid.UUID]*models.Job
	getCnt int
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (m *mockJobStore) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockJobStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCnt++
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *mockJobStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	params := store.ApplyJobUpdateOptions(opts)
	job.Status = status
	if status == models.JobStatusCompleted {
		job.Progress = 1.0
		job.CurrentStep = job.TotalSteps
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	return nil
}

func (m *mockJobStore) UpdateJobProgress(_ context.Context, id uuid.UUID, progress float64, currentStep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != models.JobStatusRunning {
		return store.ErrNotFound
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if currentStep > job.CurrentStep {
		job.CurrentStep = currentStep
	}
	return nil
}

func (m *mockJobStore) SetJobTotalSteps(_ context.Context, id uuid.UUID, totalSteps int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	job.TotalSteps = totalSteps
	return nil
}

func (m *mockJobStore) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCnt
}

// mockCache stores snapshots in a map.
type mockCache struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID][]byte
}

func newMockCache() *mockCache {
	return &mockCache{snapshots: make(map[uuid.UUID][]byte)}
}

func (m *mockCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (m *mockCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (m *mockCache) Delete(context.Context, string) error                     { return nil }
func (m *mockCache) Ping(context.Context) error                               { return nil }

func (m *mockCache) SetJobSnapshot(_ context.Context, jobID uuid.UUID, snapshot []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[jobID] = snapshot
	return nil
}

func (m *mockCache) GetJobSnapshot(_ context.Context, jobID uuid.UUID) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, ok := m.snapshots[jobID]
	return snapshot, ok, nil
}

func (m *mockCache) DeleteJobSnapshot(_ context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, jobID)
	return nil
}

func (m *mockCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

func newTestService() (*Service, *mockJobStore, *mockCache) {
	st := newMockJobStore()
	ca := newMockCache()
	return NewService(st, ca), st, ca
}

func TestCreate(t *testing.T) {
	svc, st, ca := newTestService()
	projectID := uuid.New()

	job, err := svc.Create(context.Background(), projectID, models.JobTypePageSplit, 4)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 4, job.TotalSteps)
	assert.Equal(t, projectID, job.ProjectID)

	stored, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, stored.Status)

	_, cached, err := ca.GetJobSnapshot(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestCreate_UnknownType(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), uuid.New(), "transmogrify", 1)
	assert.Error(t, err)
}

func TestGet_ServedFromCache(t *testing.T) {
	svc, st, _ := newTestService()

	job, err := svc.Create(context.Background(), uuid.New(), models.JobTypePageSplit, 2)
	require.NoError(t, err)
	before := st.getCount()

	got, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	// The snapshot written at create time satisfied the read.
	assert.Equal(t, before, st.getCount())
}

func TestGet_CorruptSnapshotFallsBack(t *testing.T) {
	svc, _, ca := newTestService()

	job, err := svc.Create(context.Background(), uuid.New(), models.JobTypePageSplit, 2)
	require.NoError(t, err)
	require.NoError(t, ca.SetJobSnapshot(context.Background(), job.ID, []byte("{not json"), time.Minute))

	got, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	// The store read repaired the snapshot.
	snapshot, ok, err := ca.GetJobSnapshot(context.Background(), job.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, []byte("{not json"), snapshot)
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStart(t *testing.T) {
	svc, st, _ := newTestService()

	// Total steps unknown at create time; the worker learns it later.
	job, err := svc.Create(context.Background(), uuid.New(), models.JobTypePageSplit, 0)
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background(), job.ID, 7))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.Equal(t, 7, got.TotalSteps)
}

func TestAdvance(t *testing.T) {
	svc, st, _ := newTestService()

	job, err := svc.Create(context.Background(), uuid.New(), models.JobTypeScriptGeneration, 0)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background(), job.ID, 4))

	require.NoError(t, svc.Advance(context.Background(), job.ID, 1, 4))
	require.NoError(t, svc.Advance(context.Background(), job.ID, 2, 4))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Progress, 1e-9)
	assert.Equal(t, 2, got.CurrentStep)
}

func TestComplete(t *testing.T) {
	svc, st, _ := newTestService()

	job, err := svc.Create(context.Background(), uuid.New(), models.JobTypeAudioGeneration, 3)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background(), job.ID, 3))
	require.NoError(t, svc.Advance(context.Background(), job.ID, 2, 3))

	require.NoError(t, svc.Complete(context.Background(), job.ID))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.InDelta(t, 1.0, got.Progress, 1e-9)
	assert.Equal(t, 3, got.CurrentStep)
}

func TestFail(t *testing.T) {
	svc, st, _ := newTestService()

	job, err := svc.Create(context.Background(), uuid.New(), models.JobTypePageSplit, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background(), job.ID, 1))

	require.NoError(t, svc.Fail(context.Background(), job.ID, "pdftoppm exited 1"))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "pdftoppm exited 1", *got.ErrorMessage)
}

func TestCancel(t *testing.T) {
	svc, st, _ := newTestService()

	job, err := svc.Create(context.Background(), uuid.New(), models.JobTypeScriptGeneration, 5)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background(), job.ID, 5))

	require.NoError(t, svc.Cancel(context.Background(), job.ID))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "job cancelled", *got.ErrorMessage)
}

func TestCancel_TerminalJob(t *testing.T) {
	svc, _, _ := newTestService()

	job, err := svc.Create(context.Background(), uuid.New(), models.JobTypePageSplit, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background(), job.ID, 1))
	require.NoError(t, svc.Complete(context.Background(), job.ID))

	err = svc.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancel_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.Cancel(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelled(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	job, err := svc.Create(ctx, uuid.New(), models.JobTypePageSplit, 2)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, job.ID, 2))
	assert.False(t, svc.Cancelled(ctx, job.ID))

	require.NoError(t, svc.Cancel(ctx, job.ID))
	assert.True(t, svc.Cancelled(ctx, job.ID))

	// Unknown jobs resolve to false rather than aborting a worker.
	assert.False(t, svc.Cancelled(ctx, uuid.New()))
}
