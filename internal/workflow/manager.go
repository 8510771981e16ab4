package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/logging"
	"github.com/Khamel83/atlas-sub014/internal/queue"
)

// Processor executes one claimed task.
type Processor interface {
	Process(ctx context.Context, task *queue.Task) error
}

// Manager coordinates the worker pool over the task queue.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	processor Processor
	logger    *slog.Logger

	workerCount        int
	pollInterval       time.Duration
	errorRetryInterval time.Duration
	taskTimeout        time.Duration
	heartbeatTimeout   time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, processor Processor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		cfg:                cfg,
		store:              store,
		processor:          processor,
		logger:             logging.NewComponentLogger(logger, "workflow"),
		workerCount:        workers,
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		taskTimeout:        time.Duration(cfg.Workflow.TaskTimeout) * time.Second,
		heartbeatTimeout:   time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
	}
}

// Running reports whether the pool is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent worker-loop error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
