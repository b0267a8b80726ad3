package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus defines the possible states of a task.
type TaskStatus string

const (
	TaskStatusStarted   TaskStatus = "started"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskInfo is the serializable state of a task.
type TaskInfo struct {
	ID              string     `json:"id"`
	Status          TaskStatus `json:"status"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	Error           string     `json:"error,omitempty"`
	Result          any        `json:"result,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Task represents a long-running operation such as a full reindex.
type Task struct {
	TaskInfo
	mu sync.RWMutex
}

// TaskManager tracks asynchronous tasks. Finished tasks are kept so clients
// can poll their outcome.
type TaskManager struct {
	tasks map[string]*Task
	mu    sync.RWMutex
}

// NewTaskManager creates a new task manager.
func NewTaskManager() *TaskManager {
	return &TaskManager{
		tasks: make(map[string]*Task),
	}
}

// NewTask creates a new task, registers it, and returns it.
func (tm *TaskManager) NewTask() *Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task := &Task{TaskInfo: TaskInfo{
		ID:        uuid.New().String(),
		Status:    TaskStatusStarted,
		CreatedAt: time.Now(),
	}}
	tm.tasks[task.ID] = task
	return task
}

// GetTask safely retrieves a task by its ID.
func (tm *TaskManager) GetTask(id string) (*Task, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	task, found := tm.tasks[id]
	return task, found
}

// Run executes fn in the background under a new task.
func (tm *TaskManager) Run(fn func(t *Task) (any, error)) *Task {
	task := tm.NewTask()
	go func() {
		task.SetStatus(TaskStatusRunning)
		result, err := fn(task)
		if err != nil {
			task.SetError(err)
			return
		}
		task.SetResult(result)
	}()
	return task
}

// Snapshot returns a copy safe to serialize while the task keeps running.
func (t *Task) Snapshot() TaskInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.TaskInfo
}

// SetStatus updates the status of the task.
func (t *Task) SetStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = status
}

// SetError marks the task as failed and records the error message.
func (t *Task) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.Status = TaskStatusFailed
	t.Error = err.Error()
	t.FinishedAt = &now
}

// SetResult marks the task as completed.
func (t *Task) SetResult(result any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.Result = result
	t.FinishedAt = &now
}

// SetProgress updates the progress message for the task.
func (t *Task) SetProgress(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ProgressMessage = message
}
