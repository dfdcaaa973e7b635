package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"code-inspector/internal/common"
	"code-inspector/internal/domain"
	"code-inspector/internal/service"

	"github.com/spf13/cobra"
)

var (
	analyzeBranch    string
	analyzeKind      string
	analyzeTrigger   string
	analyzeRequester string
	historyLimit     int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <owner/name | GitHub URL>",
	Short: "立即分析一个仓库并保存结果",
	Example: `  code-inspector analyze octo/widgets
  code-inspector analyze https://github.com/octo/widgets --branch develop`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			ctx, cancel := context.WithTimeout(ctx, settings.Worker.RunTimeout)
			defer cancel()

			result, err := a.service.Run(ctx, domain.AnalysisRequest{
				RepositoryLocator: args[0],
				Branch:            analyzeBranch,
				Kind:              domain.AnalysisKind(analyzeKind),
				Trigger:           domain.TriggerSource(analyzeTrigger),
				RequesterID:       analyzeRequester,
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		})
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest <repo>",
	Short: "查看仓库最新一次分析",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			result, err := a.service.Latest(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <repo>",
	Short: "查看仓库的分析历史",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			results, err := a.service.History(ctx, args[0], historyLimit)
			if err != nil {
				return err
			}
			return renderHistory(cmd.OutOrStdout(), results)
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "按 id 查看一次分析",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			result, err := a.service.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		})
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <repo>",
	Short: "删除仓库及其全部分析记录",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			return a.service.Forget(ctx, args[0])
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve [repo...]",
	Short: "启动后台 worker，按计划重新分析已跟踪的仓库",
	Long: `启动后台分析 worker。命令行里给出的仓库会立即入队；
配置了 --schedule 时，按 cron 表达式定时为所有已跟踪的仓库提交分析。
按下 Ctrl+C 后不再接收新任务，等待队列中的任务处理完再退出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			return serve(ctx, a, args)
		})
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeBranch, "branch", "b", "", "分支，默认使用仓库的默认分支")
	analyzeCmd.Flags().StringVar(&analyzeKind, "kind", string(domain.KindFull), "分析类型: full, quick, security")
	analyzeCmd.Flags().StringVar(&analyzeTrigger, "trigger", string(domain.TriggerManual), "触发来源: manual, push, pull_request, schedule")
	analyzeCmd.Flags().StringVar(&analyzeRequester, "requester", "", "发起人 id")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "最多显示的条数")
}

// withApp 初始化依赖后执行 fn
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, settings)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// serve 运行分发器和定时任务，直到收到停止信号
func serve(ctx context.Context, a *app, locators []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := service.NewDispatcher(a.service, settings.Worker.Count, settings.Worker.QueueSize, settings.Worker.RunTimeout)

	// 按错误码统计失败次数，退出时打印
	var mu sync.Mutex
	done, failed := 0, map[string]int{}
	dispatcher.OnComplete(func(_ domain.AnalysisRequest, _ *domain.AnalysisResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			failed[common.CodeOf(err)]++
		}
	})

	var scheduler *service.Scheduler
	if settings.Worker.Schedule != "" {
		var err error
		if scheduler, err = service.NewScheduler(settings.Worker.Schedule, a.store, dispatcher); err != nil {
			return err
		}
	}

	// worker 使用独立的 context，收到信号后让队列里的任务跑完
	dispatcher.Start(context.Background())
	if scheduler != nil {
		scheduler.Start()
		fmt.Printf("⏰ 定时分析已启动: %s\n", settings.Worker.Schedule)
	}

	for _, locator := range locators {
		if err := dispatcher.Enqueue(domain.AnalysisRequest{RepositoryLocator: locator, Trigger: domain.TriggerManual}); err != nil {
			log.Printf("⚠️ 提交 %s 失败: %v", locator, err)
		}
	}

	fmt.Println("按下 Ctrl+C 可以优雅停止程序")
	<-ctx.Done()
	fmt.Println("\n👋 收到停止信号，等待进行中的分析完成...")
	// 先停定时器，避免队列关闭后还有任务提交
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := dispatcher.Stop(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("📊 本次共完成 %d 次分析\n", done)
	for code, n := range failed {
		fmt.Printf("   ❌ %s: %d 次\n", code, n)
	}
	return nil
}
