package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"code-inspector/internal/domain"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers    = 3
	DefaultQueueSize  = 64
	DefaultRunTimeout = 5 * time.Minute
)

var (
	ErrQueueFull        = errors.New("分析队列已满")
	ErrDispatcherClosed = errors.New("分发器已关闭")
)

// Runner 执行一次分析，*AnalysisService 满足这个接口
type Runner interface {
	Run(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// CompletionFunc 每次分析结束后回调，成功时 err 为 nil
type CompletionFunc func(req domain.AnalysisRequest, result *domain.AnalysisResult, err error)

// Dispatcher 后台 worker 池：Enqueue 立即返回，分析在 worker 里独立跑完
type Dispatcher struct {
	runner  Runner
	workers int
	timeout time.Duration
	onDone  CompletionFunc

	jobs   chan domain.AnalysisRequest
	group  errgroup.Group
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher 创建分发器，非正数参数使用默认值
func NewDispatcher(runner Runner, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Dispatcher{
		runner:  runner,
		workers: workers,
		timeout: timeout,
		jobs:    make(chan domain.AnalysisRequest, queueSize),
	}
}

// OnComplete 注册完成回调，需在 Start 之前调用
func (d *Dispatcher) OnComplete(fn CompletionFunc) {
	d.onDone = fn
}

// Start 启动 worker
func (d *Dispatcher) Start(ctx context.Context) {
	fmt.Printf("🚀 启动 %d 个分析 worker，单次超时 %s\n", d.workers, d.timeout)
	for i := 0; i < d.workers; i++ {
		workerID := i + 1
		d.group.Go(func() error {
			d.worker(ctx, workerID)
			return nil
		})
	}
}

// Enqueue 提交一次分析，不等待结果
func (d *Dispatcher) Enqueue(req domain.AnalysisRequest) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop 不再接收新任务，等待队列中的任务全部处理完
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	return d.group.Wait()
}

// worker 工作协程，逐个处理队列中的分析请求
func (d *Dispatcher) worker(ctx context.Context, workerID int) {
	for req := range d.jobs {
		fmt.Printf("   [Worker-%d] 正在分析 %s...\n", workerID, req.RepositoryLocator)

		// 每次分析单独设置超时
		runCtx, cancel := context.WithTimeout(ctx, d.timeout)
		result, err := d.runner.Run(runCtx, req)
		cancel()

		if err != nil {
			log.Printf("   [Worker-%d] ❌ %s 分析失败: %v", workerID, req.RepositoryLocator, err)
		} else {
			fmt.Printf("   [Worker-%d] ✅ %s 分析完成 (评分: %.1f)\n", workerID, req.RepositoryLocator, result.Scores.Overall)
		}

		if d.onDone != nil {
			d.onDone(req, result, err)
		}
	}
}
