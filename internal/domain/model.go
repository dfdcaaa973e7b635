package domain

import (
	"strings"
	"time"
)

// Language 源文件的编程语言 (例如 "Go", "TypeScript")
type Language string

const LanguageUnknown Language = "Unknown"

// CodeFile 代表一次分析过程中采样到的源文件
// 只在分析运行期间存在，不落库
type CodeFile struct {
	Path     string   `json:"path"`
	Content  string   `json:"content"`
	Language Language `json:"language"`
	Size     int      `json:"size"`
}

// AnalysisMetrics 静态指标，由 CodeFile 集合确定性地计算得出
type AnalysisMetrics struct {
	TotalLines     int     `json:"total_lines"`
	TotalFiles     int     `json:"total_files"`
	CodeComplexity float64 `json:"code_complexity"` // 每个文件控制结构匹配数的平均值
	DuplicateLines int     `json:"duplicate_lines"`
}

// Severity 问题严重程度
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityMajor      Severity = "major"
	SeverityMinor      Severity = "minor"
	SeveritySuggestion Severity = "suggestion"
)

// ParseSeverity 把模型返回的严重程度归一化，无法识别的一律视为 suggestion
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityMajor:
		return SeverityMajor
	case SeverityMinor:
		return SeverityMinor
	default:
		return SeveritySuggestion
	}
}

// Issue AI 发现的单个问题
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	File        string   `json:"file,omitempty"`
	Line        int      `json:"line,omitempty"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// IssueCount 按严重程度统计的问题数量
type IssueCount struct {
	Critical    int `json:"critical"`
	Major       int `json:"major"`
	Minor       int `json:"minor"`
	Suggestions int `json:"suggestions"`
}

// Total 问题总数
func (c IssueCount) Total() int {
	return c.Critical + c.Major + c.Minor + c.Suggestions
}

// CountIssues 按严重程度统计问题
func CountIssues(issues []Issue) IssueCount {
	var c IssueCount
	for _, issue := range issues {
		switch ParseSeverity(string(issue.Severity)) {
		case SeverityCritical:
			c.Critical++
		case SeverityMajor:
			c.Major++
		case SeverityMinor:
			c.Minor++
		default:
			c.Suggestions++
		}
	}
	return c
}

// ScoreBreakdown 各维度评分，取值范围 [0,10]
type ScoreBreakdown struct {
	Overall         float64 `json:"overall"`
	Quality         float64 `json:"quality"`
	Security        float64 `json:"security"`
	Performance     float64 `json:"performance"`
	Maintainability float64 `json:"maintainability"`
}

// UniformScore 所有维度同一个分数
func UniformScore(v float64) ScoreBreakdown {
	return ScoreBreakdown{
		Overall:         v,
		Quality:         v,
		Security:        v,
		Performance:     v,
		Maintainability: v,
	}
}

// InferenceReport AI 返回的语义分析结果
type InferenceReport struct {
	Scores          ScoreBreakdown `json:"scores"`
	Issues          []Issue        `json:"issues"`
	Summary         string         `json:"summary"`
	Strengths       []string       `json:"strengths"`
	Weaknesses      []string       `json:"weaknesses"`
	Recommendations []string       `json:"recommendations"`
}

// InferenceOutcome AI 分析的结果标记：要么正常，要么降级 (使用兜底结果)
// 调用方永远拿到一个可用的 Report，通过 Degraded 判断它是不是兜底值
type InferenceOutcome struct {
	Report   InferenceReport
	Degraded bool
	Reason   string
}

// AnalysisKind 分析类型
type AnalysisKind string

const (
	KindFull     AnalysisKind = "full"
	KindQuick    AnalysisKind = "quick"
	KindSecurity AnalysisKind = "security"
)

// TriggerSource 触发来源
type TriggerSource string

const (
	TriggerManual      TriggerSource = "manual"
	TriggerPush        TriggerSource = "push"
	TriggerPullRequest TriggerSource = "pull_request"
	TriggerSchedule    TriggerSource = "schedule"
)

// AnalysisRequest 一次分析的入参
type AnalysisRequest struct {
	RepositoryLocator string        `json:"repository_locator"` // owner/name 或 GitHub URL
	Branch            string        `json:"branch"`             // 为空时使用默认分支
	Kind              AnalysisKind  `json:"kind"`
	Trigger           TriggerSource `json:"trigger"`
	RequesterID       string        `json:"requester_id"`
}

// Repo 被分析的远程仓库，拥有它的全部分析记录
type Repo struct {
	ID             string     `json:"id" gorm:"primaryKey"` // 例如 "github-123456"
	FullName       string     `json:"full_name" gorm:"index"`
	URL            string     `json:"url"`
	Description    string     `json:"description"`
	Language       string     `json:"language"`
	Stars          int        `json:"stars"`
	DefaultBranch  string     `json:"default_branch"`
	OwnerUserID    string     `json:"owner_user_id"`
	LastAnalyzedAt *time.Time `json:"last_analyzed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// 删除仓库时级联删除分析记录
	Analyses []AnalysisResult `json:"-" gorm:"foreignKey:RepoID;constraint:OnDelete:CASCADE"`
}

// Owner 仓库所有者
func (r *Repo) Owner() string {
	owner, _, _ := strings.Cut(r.FullName, "/")
	return owner
}

// Name 仓库名 (不含所有者)
func (r *Repo) Name() string {
	_, name, _ := strings.Cut(r.FullName, "/")
	return name
}

// AnalysisResult 一次分析的历史记录，只追加不修改
type AnalysisResult struct {
	ID          string        `json:"id" gorm:"primaryKey"`
	RepoID      string        `json:"repo_id" gorm:"index"`
	CommitSHA   string        `json:"commit_sha"`
	Branch      string        `json:"branch"`
	Kind        AnalysisKind  `json:"kind"`
	Trigger     TriggerSource `json:"trigger"`
	RequesterID string        `json:"requester_id"`

	Metrics   AnalysisMetrics `json:"metrics" gorm:"embedded"`
	Issues    IssueCount      `json:"issue_count" gorm:"embedded;embeddedPrefix:issues_"`
	Scores    ScoreBreakdown  `json:"scores" gorm:"embedded;embeddedPrefix:score_"`
	LLMScores ScoreBreakdown  `json:"llm_scores" gorm:"embedded;embeddedPrefix:llm_score_"`

	IssueList       []Issue  `json:"issues" gorm:"serializer:json"`
	Summary         string   `json:"summary" gorm:"type:text"`
	Strengths       []string `json:"strengths" gorm:"serializer:json"`
	Weaknesses      []string `json:"weaknesses" gorm:"serializer:json"`
	Recommendations []string `json:"recommendations" gorm:"serializer:json"`
	FilesAnalyzed   []string `json:"files_analyzed" gorm:"serializer:json"`

	// 兜底结果会被标记出来，不和正常结果混在一起
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// Grade 根据总分给出等级
func (a *AnalysisResult) Grade() string {
	switch s := a.Scores.Overall; {
	case s >= 9:
		return "A"
	case s >= 8:
		return "B"
	case s >= 7:
		return "C"
	case s >= 5:
		return "D"
	default:
		return "F"
	}
}
