package workers

import (
	"sync"
	"testing"
	"time"

	"lifeline/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePool struct {
	mu       sync.Mutex
	evicts   int
	lastTTL  time.Duration
	coords   int
	perState map[models.EmergencyState]int
}

func (f *fakePool) EvictIdle(ttl time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicts++
	f.lastTTL = ttl
	n := f.coords
	f.coords = 0
	return n
}

func (f *fakePool) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coords
}

func (f *fakePool) CountByState() map[models.EmergencyState]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perState
}

func (f *fakePool) evictCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evicts
}

func TestCleanupWorker_RunNow(t *testing.T) {
	pool := &fakePool{coords: 3, perState: map[models.EmergencyState]int{models.EmergencyStateActive: 1}}
	worker := NewCleanupWorker(pool, CleanupWorkerConfig{CoordinatorIdleTTL: time.Minute, EnableStatsLogging: true})

	worker.RunNow()

	stats := worker.GetStats()
	assert.Equal(t, int64(2), stats.TasksExecuted)
	assert.Equal(t, int64(3), stats.CoordinatorsEvicted)
	assert.Equal(t, time.Minute, pool.lastTTL)
	assert.Equal(t, map[string]int{"active": 1}, stats.LastCoordinatorCounts)
	assert.Contains(t, stats.TaskExecutionTimes, "coordinator_eviction")
}

func TestCleanupWorker_Defaults(t *testing.T) {
	worker := NewCleanupWorker(&fakePool{}, CleanupWorkerConfig{})
	assert.Equal(t, 30*time.Minute, worker.config.CoordinatorIdleTTL)
	assert.Equal(t, "@every 5m", worker.config.EvictionSchedule)
}

func TestCleanupWorker_InvalidSchedule(t *testing.T) {
	worker := NewCleanupWorker(&fakePool{}, CleanupWorkerConfig{EvictionSchedule: "every so often"})
	assert.Error(t, worker.Start())
	assert.False(t, worker.IsRunning())
}

func TestCleanupWorker_Scheduled(t *testing.T) {
	pool := &fakePool{}
	worker := NewCleanupWorker(pool, CleanupWorkerConfig{EvictionSchedule: "@every 1s"})
	require.NoError(t, worker.Start())
	require.NoError(t, worker.Start())
	assert.True(t, worker.IsRunning())

	assert.Eventually(t, func() bool { return pool.evictCalls() > 0 }, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, worker.Stop())
	assert.False(t, worker.IsRunning())
}
