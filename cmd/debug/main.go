package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"code-inspector/internal/adapter/analyzer"
	"code-inspector/internal/adapter/filter"
	"code-inspector/internal/adapter/gemini"
	"code-inspector/internal/adapter/github"
	"code-inspector/internal/config"
	"code-inspector/internal/domain"

	"github.com/spf13/pflag"
)

// 调试工具：完整跑一遍采集和评分，但不写数据库也不发通知
func main() {
	branch := pflag.StringP("branch", "b", "", "分支，默认使用仓库的默认分支")
	showPrompt := pflag.Bool("show-prompt", false, "打印发送给 AI 的提示词")
	skipAI := pflag.Bool("skip-ai", false, "跳过 AI 分析，只看静态指标")
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "用法: debug [--branch x] [--show-prompt] [--skip-ai] <owner/name>")
		os.Exit(2)
	}
	locator := pflag.Arg(0)

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("❌ 配置加载失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), settings.Worker.RunTimeout)
	defer cancel()

	limits := gemini.PromptLimits{
		MaxFiles:     settings.Gemini.PromptFiles,
		LinesPerFile: settings.Gemini.PromptLines,
		MaxChars:     settings.Gemini.PromptMaxChars,
	}
	collector := github.NewCollector(settings.GitHub.Token, filter.NewSourceFilter(settings.GitHub.MaxFileSize, settings.GitHub.MaxFiles))
	repoAnalyzer := analyzer.NewRepoAnalyzer()

	fmt.Println("🔍 调试模式：采集并分析仓库 (不落库)")

	// 1. 定位仓库
	repo, err := collector.Locate(ctx, locator)
	if err != nil {
		log.Fatalf("❌ 定位仓库失败: %v", err)
	}
	ref := *branch
	if ref == "" {
		ref = repo.DefaultBranch
	}
	sha, err := collector.ResolveCommit(ctx, repo, ref)
	if err != nil {
		log.Fatalf("❌ 解析 commit 失败: %v", err)
	}
	fmt.Printf("✅ %s (%s) 分支 %s @ %s\n", repo.FullName, repo.ID, ref, sha)

	// 2. 采集源文件
	files, err := collector.CollectFiles(ctx, repo, ref)
	if err != nil {
		log.Fatalf("❌ 采集文件失败: %v", err)
	}
	fmt.Printf("📥 采集到 %d 个源文件\n", len(files))
	for i, f := range files {
		fmt.Printf("  %3d. %-60s %-12s %6d bytes\n", i+1, f.Path, f.Language, f.Size)
	}

	// 3. 静态指标
	metrics := repoAnalyzer.ComputeMetrics(files)
	fmt.Printf("📊 行数 %d | 文件 %d | 复杂度 %.2f | 重复行 %d\n",
		metrics.TotalLines, metrics.TotalFiles, metrics.CodeComplexity, metrics.DuplicateLines)

	if *showPrompt {
		fmt.Println("\n----- prompt -----")
		fmt.Println(gemini.BuildPrompt(repo, files, metrics, limits))
		fmt.Println("------------------")
	}

	if *skipAI {
		printScores("静态评分 (无问题)", repoAnalyzer.ComposeScore(metrics, domain.IssueCount{}))
		return
	}

	// 4. AI 分析
	appraiser, err := gemini.NewGeminiAppraiser(ctx, settings.Gemini.APIKey, settings.Gemini.Model, settings.Gemini.MaxOutputTokens, limits)
	if err != nil {
		log.Fatalf("❌ AI 初始化失败: %v", err)
	}
	defer appraiser.Close()

	fmt.Println("🧠 开始 AI 分析...")
	outcome := appraiser.Appraise(ctx, repo, files, metrics)
	report := outcome.Report
	if outcome.Degraded {
		fmt.Printf("⚠️ AI 分析降级: %s\n", outcome.Reason)
	}

	counts := domain.CountIssues(report.Issues)
	fmt.Printf("    问题: critical %d / major %d / minor %d / suggestion %d\n",
		counts.Critical, counts.Major, counts.Minor, counts.Suggestions)
	for _, issue := range report.Issues {
		fmt.Printf("    [%s] %s %s:%d %s\n", issue.Severity, issue.Category, issue.File, issue.Line, issue.Description)
	}
	fmt.Printf("    总结: %s\n", report.Summary)

	// 5. 模型评分与最终评分对比
	printScores("模型评分", report.Scores)
	if !outcome.Degraded {
		printScores("最终评分", repoAnalyzer.ComposeScore(metrics, counts))
	}
}

func printScores(title string, s domain.ScoreBreakdown) {
	fmt.Printf("🏆 %s: 总分 %.1f | 质量 %.1f | 安全 %.1f | 性能 %.1f | 可维护性 %.1f\n",
		title, s.Overall, s.Quality, s.Security, s.Performance, s.Maintainability)
}
