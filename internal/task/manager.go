package task

import (
	"PICs_Gallery/pkg/logger"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTaskRunning 表示已有重载任务在运行。
var ErrTaskRunning = errors.New("另一个重载任务正在进行中")

// ErrTaskNotFound 表示任务ID不存在。
var ErrTaskNotFound = errors.New("找不到任务")

// TaskStatus 定义了任务可能的状态。
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Task 结构体代表一个后台重载任务。
type Task struct {
	ID        string     `json:"id"`
	Status    TaskStatus `json:"status"`
	Progress  float64    `json:"progress"`
	Photos    int        `json:"photos"`
	Error     string     `json:"error,omitempty"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// Reloader 丢弃聚合缓存并重新加载，返回图片数。
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// Manager 结构体是任务管理器。
type Manager struct {
	tasks map[string]*Task
	mu    sync.RWMutex

	reloader Reloader
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewManager 创建任务管理器。timeout 限制单个重载任务的执行时间，<= 0 表示不限制。
func NewManager(r Reloader, timeout time.Duration, log *slog.Logger) *Manager {
	return &Manager{
		tasks:    make(map[string]*Task),
		reloader: r,
		timeout:  timeout,
		logger:   logger.OrDefault(log),
	}
}

// StartReloadTask 创建一个重载任务并立即在后台启动。同一时间只允许一个任务运行。
func (m *Manager) StartReloadTask() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tasks {
		if t.Status == StatusRunning || t.Status == StatusPending {
			return "", fmt.Errorf("%w (ID: %s)，请等待其完成后再试", ErrTaskRunning, t.ID)
		}
	}

	taskID := uuid.New().String()
	newTask := &Task{
		ID:        taskID,
		Status:    StatusPending,
		StartTime: time.Now(),
	}
	m.tasks[taskID] = newTask

	m.wg.Add(1)
	go m.runReload(newTask)

	return taskID, nil
}

// GetTaskStatus 返回任务当前状态的副本。
func (m *Manager) GetTaskStatus(taskID string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, exists := m.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	cp := *t
	return &cp, nil
}

// Wait 等待所有后台任务结束。
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) runReload(t *Task) {
	defer m.wg.Done()

	m.mu.Lock()
	t.Status = StatusRunning
	t.Progress = 10
	m.mu.Unlock()
	m.logger.Info("重载任务启动", "task", t.ID)

	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	n, err := m.reloader.Reload(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	endTime := time.Now()
	t.EndTime = &endTime
	if err != nil {
		t.Status = StatusFailed
		t.Error = err.Error()
		m.logger.Error("重载任务失败", "task", t.ID, "error", err)
		return
	}
	t.Status = StatusCompleted
	t.Progress = 100
	t.Photos = n
	m.logger.Info("重载任务完成", "task", t.ID, "photos", n, "耗时", endTime.Sub(t.StartTime))
}
