package service

import (
	"context"
	"fmt"
	"log"

	"code-inspector/internal/domain"
	"code-inspector/internal/port"

	"github.com/robfig/cron/v3"
)

// Enqueuer 接收分析请求，*Dispatcher 满足这个接口
type Enqueuer interface {
	Enqueue(req domain.AnalysisRequest) error
}

// Scheduler 按 cron 表达式定时重新分析所有已跟踪的仓库
type Scheduler struct {
	cron  *cron.Cron
	store port.Repository
	queue Enqueuer
}

// NewScheduler 创建定时任务，表达式使用标准 5 段 cron 表达式或 @daily 这类描述符
func NewScheduler(expr string, store port.Repository, queue Enqueuer) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(),
		store: store,
		queue: queue,
	}

	_, err := s.cron.AddFunc(expr, func() {
		if _, err := s.EnqueueAll(context.Background()); err != nil {
			log.Printf("❌ 定时分析失败: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cron 表达式 %q 不合法: %w", expr, err)
	}
	return s, nil
}

// Start 启动定时器
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止定时器，返回的 context 在正在执行的任务结束后关闭
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// EnqueueAll 为每个仓库提交一次 schedule 触发的分析，返回成功提交的数量
func (s *Scheduler) EnqueueAll(ctx context.Context) (int, error) {
	repos, err := s.store.ListRepos(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取仓库列表失败: %w", err)
	}

	fmt.Printf("⏰ 定时分析: 共 %d 个仓库\n", len(repos))
	queued := 0
	for _, repo := range repos {
		err := s.queue.Enqueue(domain.AnalysisRequest{
			RepositoryLocator: repo.FullName,
			Kind:              domain.KindFull,
			Trigger:           domain.TriggerSchedule,
			RequesterID:       repo.OwnerUserID,
		})
		if err != nil {
			log.Printf("⚠️ 提交 %s 失败: %v", repo.FullName, err)
			continue
		}
		queued++
	}
	return queued, nil
}
