package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"code-inspector/internal/common"
	"code-inspector/internal/domain"
	"code-inspector/internal/port"
)

// AnalysisService 串起一次完整的分析流程
// 采集 → 静态指标 → AI 语义分析 → 综合评分 → 落库 → 完成通知
type AnalysisService struct {
	host      port.SourceHost
	analyzer  port.Analyzer
	appraiser port.Appraiser
	store     port.Repository
	notifier  port.Notifier
}

// NewAnalysisService 创建分析服务，notifier 可以为 nil
func NewAnalysisService(
	host port.SourceHost,
	analyzer port.Analyzer,
	appraiser port.Appraiser,
	store port.Repository,
	notifier port.Notifier,
) *AnalysisService {
	return &AnalysisService{
		host:      host,
		analyzer:  analyzer,
		appraiser: appraiser,
		store:     store,
		notifier:  notifier,
	}
}

// Run 执行一次分析并写入一条 AnalysisResult
// 采集失败时整个流程终止，不写任何数据；AI 失败不算错误，结果会带上 Degraded 标记
func (s *AnalysisService) Run(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if strings.TrimSpace(req.RepositoryLocator) == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "仓库定位符不能为空")
	}
	if req.Kind == "" {
		req.Kind = domain.KindFull
	}
	if req.Trigger == "" {
		req.Trigger = domain.TriggerManual
	}

	// 1. 定位仓库
	fmt.Printf("🔎 正在定位仓库 %s...\n", req.RepositoryLocator)
	repo, err := s.host.Locate(ctx, req.RepositoryLocator)
	if err != nil {
		return nil, stageError(common.ErrCodeGitHubAPI, "定位仓库失败", err)
	}
	if repo.OwnerUserID == "" {
		repo.OwnerUserID = req.RequesterID
	}

	branch := req.Branch
	if branch == "" {
		branch = repo.DefaultBranch
	}

	// 2. 采集源文件
	sha, err := s.host.ResolveCommit(ctx, repo, branch)
	if err != nil {
		return nil, stageError(common.ErrCodeGitHubAPI, "获取 commit 失败", err)
	}

	fmt.Printf("📥 正在采集 %s@%s 的源文件...\n", repo.FullName, branch)
	files, err := s.host.CollectFiles(ctx, repo, branch)
	if err != nil {
		return nil, stageError(common.ErrCodeGitHubAPI, "采集源文件失败", err)
	}
	fmt.Printf("✅ 采集到 %d 个源文件\n", len(files))

	// 3. 静态指标
	metrics := s.analyzer.ComputeMetrics(files)

	// 4. AI 语义分析
	fmt.Println("🧠 正在进行 AI 语义分析...")
	outcome := s.appraiser.Appraise(ctx, repo, files, metrics)
	report := outcome.Report
	issues := domain.CountIssues(report.Issues)

	// 5. 综合评分：降级时直接使用兜底分数，不走扣分公式
	var scores domain.ScoreBreakdown
	if outcome.Degraded {
		log.Printf("⚠️ [%s] %s AI 分析降级: %s", common.ErrCodeAIProcessing, repo.FullName, outcome.Reason)
		scores = report.Scores
	} else {
		scores = s.analyzer.ComposeScore(metrics, issues)
	}

	result := &domain.AnalysisResult{
		RepoID:          repo.ID,
		CommitSHA:       sha,
		Branch:          branch,
		Kind:            req.Kind,
		Trigger:         req.Trigger,
		RequesterID:     req.RequesterID,
		Metrics:         metrics,
		Issues:          issues,
		Scores:          scores,
		LLMScores:       report.Scores,
		IssueList:       report.Issues,
		Summary:         report.Summary,
		Strengths:       report.Strengths,
		Weaknesses:      report.Weaknesses,
		Recommendations: report.Recommendations,
		FilesAnalyzed:   filePaths(files),
		Degraded:        outcome.Degraded,
		DegradedReason:  outcome.Reason,
	}

	// 6. 落库
	fmt.Println("💾 正在保存分析结果...")
	if err := s.store.SaveAnalysis(ctx, repo, result); err != nil {
		return nil, stageError(common.ErrCodeDatabase, "保存分析结果失败", err)
	}
	fmt.Printf("🎉 %s 分析完成: %.1f 分 (%s)\n", repo.FullName, result.Scores.Overall, result.Grade())

	// 7. 完成通知，失败只记日志
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, repo, result); err != nil {
			log.Printf("⚠️ 推送 %s 的分析结果失败: %v", repo.FullName, err)
		}
	}

	return result, nil
}

// Latest 仓库最新的一条分析记录
func (s *AnalysisService) Latest(ctx context.Context, ref string) (*domain.AnalysisResult, error) {
	repoID, err := s.repoIDOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	result, err := s.store.LatestAnalysis(ctx, repoID)
	if err != nil {
		return nil, stageError(common.ErrCodeDatabase, "查询最新分析失败", err)
	}
	return result, nil
}

// History 仓库的分析历史，最新的在前
func (s *AnalysisService) History(ctx context.Context, ref string, limit int) ([]*domain.AnalysisResult, error) {
	repoID, err := s.repoIDOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListAnalyses(ctx, repoID, limit)
	if err != nil {
		return nil, stageError(common.ErrCodeDatabase, "查询分析历史失败", err)
	}
	return results, nil
}

// Get 按 id 获取分析记录
func (s *AnalysisService) Get(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	result, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, stageError(common.ErrCodeDatabase, "查询分析记录失败", err)
	}
	return result, nil
}

// Forget 删除仓库及其全部分析记录
func (s *AnalysisService) Forget(ctx context.Context, ref string) error {
	repoID, err := s.repoIDOf(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRepo(ctx, repoID); err != nil {
		return stageError(common.ErrCodeDatabase, "删除仓库失败", err)
	}
	fmt.Printf("🗑️ 已删除仓库 %s 及其分析记录\n", repoID)
	return nil
}

// repoIDOf 接受仓库 id ("github-123") 或定位符，定位符需要查一次 GitHub
func (s *AnalysisService) repoIDOf(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", common.NewError(common.ErrCodeInvalidInput, "仓库不能为空")
	}
	if strings.HasPrefix(ref, "github-") {
		return ref, nil
	}
	repo, err := s.host.Locate(ctx, ref)
	if err != nil {
		return "", stageError(common.ErrCodeGitHubAPI, "定位仓库失败", err)
	}
	return repo.ID, nil
}

// stageError 给错误打上阶段错误码，已经带 INVALID_INPUT/NOT_FOUND 的保持原样
func stageError(code, message string, err error) error {
	if common.IsCode(err, common.ErrCodeInvalidInput) || common.IsCode(err, common.ErrCodeNotFound) {
		return err
	}
	return common.WrapError(code, message, err)
}

func filePaths(files []domain.CodeFile) []string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths
}
