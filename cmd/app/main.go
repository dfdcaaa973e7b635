package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"code-inspector/internal/adapter/analyzer"
	"code-inspector/internal/adapter/feishu"
	"code-inspector/internal/adapter/filter"
	"code-inspector/internal/adapter/gemini"
	"code-inspector/internal/adapter/github"
	"code-inspector/internal/adapter/repository"
	"code-inspector/internal/config"
	"code-inspector/internal/port"
	"code-inspector/internal/service"

	"github.com/spf13/cobra"
)

// settings 在 PersistentPreRunE 中加载，所有子命令共用
var settings *config.Settings

var rootCmd = &cobra.Command{
	Use:           "code-inspector",
	Short:         "GitHub 仓库代码质量评分",
	Long:          "采集 GitHub 仓库的源文件样本，结合静态指标和 Gemini 语义分析给出 0-10 的质量评分，并保存每次分析的历史记录。",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		s, err := config.LoadSettingsWithFlags(cmd.Flags())
		if err != nil {
			return err
		}
		if err := config.ValidateSettings(s); err != nil {
			return err
		}
		settings = s
		return nil
	},
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(analyzeCmd, latestCmd, historyCmd, showCmd, forgetCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// app 组装好的依赖
type app struct {
	service   *service.AnalysisService
	store     port.Repository
	appraiser *gemini.GeminiAppraiser
}

// newApp 初始化数据库、GitHub、Gemini 和飞书
func newApp(ctx context.Context, s *config.Settings) (*app, error) {
	// 1. 数据库
	repoStore, err := repository.NewPostgresRepo(s.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("DB 初始化失败: %w", err)
	}

	// 2. AI
	appraiser, err := gemini.NewGeminiAppraiser(ctx, s.Gemini.APIKey, s.Gemini.Model, s.Gemini.MaxOutputTokens, gemini.PromptLimits{
		MaxFiles:     s.Gemini.PromptFiles,
		LinesPerFile: s.Gemini.PromptLines,
		MaxChars:     s.Gemini.PromptMaxChars,
	})
	if err != nil {
		return nil, fmt.Errorf("AI 初始化失败: %w", err)
	}

	// 3. GitHub 采集
	if s.GitHub.Token == "" {
		log.Println("⚠️ 警告: 未设置 GITHUB_TOKEN，匿名访问每小时只有 60 次调用额度")
	}
	collector := github.NewCollector(s.GitHub.Token, filter.NewSourceFilter(s.GitHub.MaxFileSize, s.GitHub.MaxFiles))

	// 4. 通知 (可选)
	svc := service.NewAnalysisService(collector, analyzer.NewRepoAnalyzer(), appraiser, repoStore, notifierFor(s.FeishuWebhook))
	return &app{service: svc, store: repoStore, appraiser: appraiser}, nil
}

// notifierFor 没有配置 Webhook 时返回 nil，分析服务会跳过通知
func notifierFor(webhook string) port.Notifier {
	n := feishu.NewNotifier(webhook)
	if !n.Enabled() {
		return nil
	}
	return n
}

func (a *app) Close() {
	if err := a.appraiser.Close(); err != nil {
		log.Printf("⚠️ 关闭 Gemini 客户端失败: %v", err)
	}
}
