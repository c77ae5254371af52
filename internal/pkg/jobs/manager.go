package jobs

import (
	"context"
	"sync"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Task is one periodic background job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Manager runs tasks on their own tickers until stopped.
type Manager struct {
	tasks   []Task
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewManager(tasks ...Task) *Manager {
	return &Manager{tasks: tasks}
}

// Tasks returns the registered tasks.
func (m *Manager) Tasks() []Task {
	return m.tasks
}

// Start launches one worker per task. Calling Start twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	fiberlog.Infof("[Jobs] Starting %d background tasks", len(m.tasks))

	for _, task := range m.tasks {
		if task.Interval <= 0 || task.Run == nil {
			fiberlog.Warnf("[Jobs] Skipping task %q without interval", task.Name)
			continue
		}
		m.wg.Add(1)
		go m.worker(ctx, task, m.stopCh)
	}
}

// Stop signals all workers and waits for them to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	fiberlog.Info("[Jobs] Stopping background tasks...")
	close(m.stopCh)
	m.cancel()
	m.stopCh = nil
	m.running = false

	m.wg.Wait()
	fiberlog.Info("[Jobs] Stopped successfully")
}

// RunOnce runs every task a single time, in order. The first error is
// returned after all tasks ran.
func (m *Manager) RunOnce(ctx context.Context) error {
	var first error
	for _, task := range m.tasks {
		if task.Run == nil {
			continue
		}
		if err := task.Run(ctx); err != nil {
			fiberlog.Errorf("[Jobs] Task %s failed: %v", task.Name, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (m *Manager) worker(ctx context.Context, task Task, stopCh <-chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	fiberlog.Infof("[Jobs] Started %s worker (interval: %s)", task.Name, task.Interval)

	for {
		select {
		case <-stopCh:
			fiberlog.Debugf("[Jobs] %s worker stopping", task.Name)
			return
		case <-ticker.C:
			if err := task.Run(ctx); err != nil {
				fiberlog.Errorf("[Jobs] Task %s failed: %v", task.Name, err)
			}
		}
	}
}
