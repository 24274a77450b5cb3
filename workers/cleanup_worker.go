package workers

import (
	"sync"
	"time"

	"lifeline/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CoordinatorPool is the part of the coordinator registry the worker maintains
type CoordinatorPool interface {
	EvictIdle(ttl time.Duration) int
	Len() int
	CountByState() map[models.EmergencyState]int
}

type CleanupWorker struct {
	pool   CoordinatorPool
	config CleanupWorkerConfig

	// Worker state
	scheduler *cron.Cron
	isRunning bool
	mutex     sync.Mutex

	tasks []CleanupTask

	// Metrics
	stats      CleanupWorkerStats
	statsMutex sync.RWMutex
}

type CleanupWorkerConfig struct {
	// Coordinators idle for longer than this are dropped
	CoordinatorIdleTTL time.Duration `json:"coordinatorIdleTTL"`

	// Cron specs, robfig/cron syntax ("@every 5m", "*/10 * * * *")
	EvictionSchedule string `json:"evictionSchedule"`
	StatsSchedule    string `json:"statsSchedule"`

	EnableStatsLogging bool `json:"enableStatsLogging"`
}

type CleanupTask struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
	Enabled     bool   `json:"enabled"`
	Function    func() error
}

type CleanupWorkerStats struct {
	TasksExecuted         int64            `json:"tasksExecuted"`
	TasksFailed           int64            `json:"tasksFailed"`
	CoordinatorsEvicted   int64            `json:"coordinatorsEvicted"`
	LastCleanupAt         time.Time        `json:"lastCleanupAt"`
	TaskExecutionTimes    map[string]int64 `json:"taskExecutionTimes"` // ms
	StartTime             time.Time        `json:"startTime"`
	LastCoordinatorCounts map[string]int   `json:"lastCoordinatorCounts"`
}

func DefaultCleanupWorkerConfig() CleanupWorkerConfig {
	return CleanupWorkerConfig{
		CoordinatorIdleTTL: 30 * time.Minute,
		EvictionSchedule:   "@every 5m",
		StatsSchedule:      "@every 15m",
		EnableStatsLogging: true,
	}
}

func NewCleanupWorker(pool CoordinatorPool, config CleanupWorkerConfig) *CleanupWorker {
	defaults := DefaultCleanupWorkerConfig()
	if config.CoordinatorIdleTTL <= 0 {
		config.CoordinatorIdleTTL = defaults.CoordinatorIdleTTL
	}
	if config.EvictionSchedule == "" {
		config.EvictionSchedule = defaults.EvictionSchedule
	}
	if config.StatsSchedule == "" {
		config.StatsSchedule = defaults.StatsSchedule
	}

	worker := &CleanupWorker{
		pool:   pool,
		config: config,
		stats: CleanupWorkerStats{
			StartTime:          time.Now(),
			TaskExecutionTimes: make(map[string]int64),
		},
	}
	worker.initializeTasks()
	return worker
}

// Start schedules every enabled task. An invalid schedule fails the start.
func (cw *CleanupWorker) Start() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.isRunning {
		return nil
	}

	logrus.Info("Starting Cleanup Worker...")

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	scheduled := 0
	for i := range cw.tasks {
		task := cw.tasks[i]
		if !task.Enabled {
			continue
		}
		if _, err := scheduler.AddFunc(task.Schedule, func() { cw.executeTask(task) }); err != nil {
			logrus.Errorf("Invalid schedule %q for cleanup task %s: %v", task.Schedule, task.Name, err)
			return err
		}
		scheduled++
	}

	scheduler.Start()
	cw.scheduler = scheduler
	cw.isRunning = true

	logrus.Infof("Cleanup Worker started with %d tasks", scheduled)
	return nil
}

// Stop waits for running tasks to finish.
func (cw *CleanupWorker) Stop() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if !cw.isRunning {
		return nil
	}

	logrus.Info("Stopping Cleanup Worker...")

	<-cw.scheduler.Stop().Done()
	cw.isRunning = false

	logrus.Info("Cleanup Worker stopped successfully")
	return nil
}

func (cw *CleanupWorker) initializeTasks() {
	cw.tasks = []CleanupTask{
		{
			Name:        "coordinator_eviction",
			Description: "Drop emergency coordinators that have been idle past the TTL",
			Schedule:    cw.config.EvictionSchedule,
			Enabled:     true,
			Function:    cw.evictIdleCoordinators,
		},
		{
			Name:        "coordinator_stats",
			Description: "Log coordinator counts per state",
			Schedule:    cw.config.StatsSchedule,
			Enabled:     cw.config.EnableStatsLogging,
			Function:    cw.logCoordinatorStats,
		},
	}
}

func (cw *CleanupWorker) executeTask(task CleanupTask) {
	start := time.Now()
	err := task.Function()
	duration := time.Since(start)

	cw.statsMutex.Lock()
	cw.stats.TasksExecuted++
	cw.stats.TaskExecutionTimes[task.Name] = duration.Milliseconds()
	cw.stats.LastCleanupAt = time.Now()
	if err != nil {
		cw.stats.TasksFailed++
	}
	cw.statsMutex.Unlock()

	if err != nil {
		logrus.Errorf("Cleanup task %s failed: %v", task.Name, err)
		return
	}
	logrus.Debugf("Cleanup task %s completed in %v", task.Name, duration)
}

func (cw *CleanupWorker) evictIdleCoordinators() error {
	evicted := cw.pool.EvictIdle(cw.config.CoordinatorIdleTTL)

	cw.statsMutex.Lock()
	cw.stats.CoordinatorsEvicted += int64(evicted)
	cw.statsMutex.Unlock()
	return nil
}

func (cw *CleanupWorker) logCoordinatorStats() error {
	counts := make(map[string]int)
	fields := logrus.Fields{"coordinators": cw.pool.Len()}
	for state, n := range cw.pool.CountByState() {
		counts[string(state)] = n
		fields[string(state)] = n
	}

	cw.statsMutex.Lock()
	cw.stats.LastCoordinatorCounts = counts
	cw.statsMutex.Unlock()

	logrus.WithFields(fields).Info("Emergency coordinator stats")
	return nil
}

// RunNow executes every enabled task once, outside the schedule.
func (cw *CleanupWorker) RunNow() {
	for _, task := range cw.tasks {
		if task.Enabled {
			cw.executeTask(task)
		}
	}
}

func (cw *CleanupWorker) GetStats() CleanupWorkerStats {
	cw.statsMutex.RLock()
	defer cw.statsMutex.RUnlock()

	stats := cw.stats
	stats.TaskExecutionTimes = make(map[string]int64, len(cw.stats.TaskExecutionTimes))
	for k, v := range cw.stats.TaskExecutionTimes {
		stats.TaskExecutionTimes[k] = v
	}
	return stats
}

func (cw *CleanupWorker) IsRunning() bool {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	return cw.isRunning
}
