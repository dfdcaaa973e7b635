package port

import (
	"context"

	"code-inspector/internal/domain"
)

// SourceHost (代码托管方): 负责定位仓库并采集源文件
type SourceHost interface {
	// Locate 把 "owner/name" 或 GitHub URL 解析成仓库实体
	Locate(ctx context.Context, locator string) (*domain.Repo, error)

	// ResolveCommit 返回分支当前的 commit SHA，branch 为空时使用默认分支
	ResolveCommit(ctx context.Context, repo *domain.Repo, branch string) (string, error)

	// CollectFiles 深度优先遍历远程文件树，返回有上限的源文件样本
	// 单个文件/目录失败会被跳过；根目录都拿不到时返回错误
	CollectFiles(ctx context.Context, repo *domain.Repo, branch string) ([]domain.CodeFile, error)
}

// Filter (过滤器): 决定哪些目录要进入、哪些文件要采集
type Filter interface {
	AcceptDir(name string) bool
	AcceptFile(path string, size int) bool
	MaxFiles() int
}

// Analyzer (分析器): 纯计算，静态指标 + 综合评分
type Analyzer interface {
	ComputeMetrics(files []domain.CodeFile) domain.AnalysisMetrics
	ComposeScore(metrics domain.AnalysisMetrics, issues domain.IssueCount) domain.ScoreBreakdown
}

// Appraiser (鉴定师): 调用 LLM 做语义分析
// 永远不返回错误，失败时返回 Degraded 的兜底结果
type Appraiser interface {
	Appraise(ctx context.Context, repo *domain.Repo, files []domain.CodeFile, metrics domain.AnalysisMetrics) domain.InferenceOutcome
}

// Notifier (信使): 分析完成后的通知，尽力而为
type Notifier interface {
	Notify(ctx context.Context, repo *domain.Repo, result *domain.AnalysisResult) error
}

// Repository (仓库管理员): 负责存储和查询
type Repository interface {
	// SaveAnalysis 在一个事务里保存仓库信息、写入分析记录并刷新 last_analyzed_at
	// 任何一步失败都整体回滚
	SaveAnalysis(ctx context.Context, repo *domain.Repo, result *domain.AnalysisResult) error

	GetAnalysis(ctx context.Context, id string) (*domain.AnalysisResult, error)

	// LatestAnalysis 按创建时间倒序取最新一条
	LatestAnalysis(ctx context.Context, repoID string) (*domain.AnalysisResult, error)

	ListAnalyses(ctx context.Context, repoID string, limit int) ([]*domain.AnalysisResult, error)

	ListRepos(ctx context.Context) ([]*domain.Repo, error)

	// DeleteRepo 删除仓库，分析记录由外键级联删除
	DeleteRepo(ctx context.Context, repoID string) error
}
