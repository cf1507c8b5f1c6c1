package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"plgshop/pkg/logger"
)

// ErrQueueFull 队列已满
var ErrQueueFull = errors.New("async queue is full")

// ErrStopped 工作器已停止
var ErrStopped = errors.New("async worker stopped")

// Task 表示一个异步任务
type Task struct {
	ID       string
	Name     string
	Handler  func(ctx context.Context) error
	Timeout  time.Duration
	RetryMax int
}

// Result 表示任务执行结果
type Result struct {
	TaskID    string
	Name      string
	Completed bool
	Error     error
	StartTime time.Time
	EndTime   time.Time
}

// Worker 异步任务处理器
type Worker struct {
	taskQueue  chan Task
	results    map[string]Result
	order      []string
	maxResults int
	backoff    time.Duration
	stopped    bool
	mu         sync.RWMutex
	logger     *logger.Logger
	wg         sync.WaitGroup
}

// NewWorker 创建一个新的工作器
func NewWorker(queueSize int, log *logger.Logger) *Worker {
	return &Worker{
		taskQueue:  make(chan Task, queueSize),
		results:    make(map[string]Result),
		maxResults: 1000,
		backoff:    time.Second,
		logger:     log,
	}
}

// Start 启动工作器
func (w *Worker) Start(numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.processTask()
	}
}

// Stop 停止接收新任务，等待队列中的任务完成
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.taskQueue)
	w.mu.Unlock()
	w.wg.Wait()
}

// AddTask 将任务加入队列，队列已满时不阻塞
func (w *Worker) AddTask(name string, retryMax int, timeout time.Duration, handler func(ctx context.Context) error) (string, error) {
	task := Task{
		ID:       uuid.NewString(),
		Name:     name,
		Handler:  handler,
		Timeout:  timeout,
		RetryMax: retryMax,
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return "", ErrStopped
	}
	select {
	case w.taskQueue <- task:
		return task.ID, nil
	default:
		w.logger.Warn("异步队列已满，丢弃任务", "task", name)
		return "", ErrQueueFull
	}
}

// GetResult 获取任务结果
func (w *Worker) GetResult(taskID string) (Result, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	result, exists := w.results[taskID]
	return result, exists
}

func (w *Worker) processTask() {
	defer w.wg.Done()

	for task := range w.taskQueue {
		w.executeTask(task)
	}
}

func (w *Worker) executeTask(task Task) {
	result := Result{
		TaskID:    task.ID,
		Name:      task.Name,
		StartTime: time.Now(),
	}

	var err error
	for attempt := 0; attempt <= task.RetryMax; attempt++ {
		if attempt > 0 {
			w.logger.Info("重试异步任务", "task", task.Name, "attempt", attempt)
			time.Sleep(w.backoff * time.Duration(attempt))
		}

		err = w.runOnce(task)
		if err == nil {
			break
		}
		w.logger.Warn("异步任务执行失败", "task", task.Name, "attempt", attempt, "error", err)
	}

	result.EndTime = time.Now()
	result.Error = err
	result.Completed = err == nil

	w.mu.Lock()
	w.results[task.ID] = result
	w.order = append(w.order, task.ID)
	if len(w.order) > w.maxResults {
		delete(w.results, w.order[0])
		w.order = w.order[1:]
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("异步任务最终失败", "task", task.Name, "task_id", task.ID, "error", err)
	}
}

func (w *Worker) runOnce(task Task) (err error) {
	ctx := context.Background()
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("task panicked")
		}
	}()
	return task.Handler(ctx)
}
