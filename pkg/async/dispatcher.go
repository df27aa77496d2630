package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull 佇列已滿，任務被丟棄
	ErrQueueFull = errors.New("dispatcher queue full")
	// ErrClosed Dispatcher 已關閉
	ErrClosed = errors.New("dispatcher closed")
)

// Task 背景執行的任務
type Task func(ctx context.Context) error

// Config Dispatcher 設定
type Config struct {
	// QueueSize 佇列長度 (預設 100)
	QueueSize int `yaml:"queue_size"`
	// Workers 背景 worker 數量 (預設 2)
	Workers int `yaml:"workers"`
	// Timeout 單一任務的逾時時間 (預設 10s)
	Timeout time.Duration `yaml:"timeout"`
}

// Stats Dispatcher 統計
type Stats struct {
	QueueDepth int
	Dispatched int64
	Dropped    int64
	Failed     int64
}

// Dispatcher 使用有界佇列與 worker pool 執行 fire-and-forget 任務
// Dispatch 不會阻塞，佇列滿時直接丟棄
type Dispatcher struct {
	queue   chan Task
	timeout time.Duration
	onError func(error)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	dispatched atomic.Int64
	dropped    atomic.Int64
	failed     atomic.Int64
}

// Option Dispatcher 選項
type Option func(*Dispatcher)

// WithErrorHandler 任務失敗或 panic 時呼叫
func WithErrorHandler(fn func(error)) Option {
	return func(d *Dispatcher) {
		d.onError = fn
	}
}

// New 建立並啟動 Dispatcher，結束時必須呼叫 Close
func New(cfg Config, opts ...Option) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	d := &Dispatcher{
		queue:   make(chan Task, cfg.QueueSize),
		timeout: cfg.Timeout,
		onError: func(error) {},
	}
	for _, opt := range opts {
		opt(d)
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch 將任務放入佇列，不等待執行結果
func (d *Dispatcher) Dispatch(task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- task:
		d.dispatched.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	// queue 關閉後仍會把剩下的任務處理完
	for task := range d.queue {
		if err := d.run(task); err != nil {
			d.failed.Add(1)
			d.onError(err)
		}
	}
}

func (d *Dispatcher) run(task Task) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(ctx)
}

// Close 停止接收新任務，等待佇列內的任務執行完畢
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

// Stats 目前統計
func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth: len(d.queue),
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		Failed:     d.failed.Load(),
	}
}
