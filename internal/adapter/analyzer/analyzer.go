package analyzer

import (
	"regexp"
	"strings"

	"code-inspector/internal/domain"
)

// complexityPatterns 控制结构的粗略近似：if/for/while/switch/catch 和三元表达式
var complexityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`if\s*\(`),
	regexp.MustCompile(`for\s*\(`),
	regexp.MustCompile(`while\s*\(`),
	regexp.MustCompile(`switch\s*\(`),
	regexp.MustCompile(`catch\s*\(`),
	regexp.MustCompile(`\?.*:`),
}

// 去掉首尾空白后长度超过该值的行才参与重复检测
const minDuplicateLineLength = 10

// RepoAnalyzer 实现了 port.Analyzer 接口，无状态，可并发使用
type RepoAnalyzer struct {
	weights Weights
}

// NewRepoAnalyzer 使用默认扣分权重
func NewRepoAnalyzer() *RepoAnalyzer {
	return &RepoAnalyzer{weights: DefaultWeights()}
}

// NewRepoAnalyzerWithWeights 使用自定义扣分权重
func NewRepoAnalyzerWithWeights(w Weights) *RepoAnalyzer {
	return &RepoAnalyzer{weights: w}
}

// ComputeMetrics 计算静态指标
func (a *RepoAnalyzer) ComputeMetrics(files []domain.CodeFile) domain.AnalysisMetrics {
	return ComputeMetrics(files)
}

// ComposeScore 根据静态指标和问题统计计算各维度评分
func (a *RepoAnalyzer) ComposeScore(metrics domain.AnalysisMetrics, issues domain.IssueCount) domain.ScoreBreakdown {
	return a.weights.Compose(metrics, issues)
}

// ComputeMetrics 是纯函数，文件顺序不影响结果
func ComputeMetrics(files []domain.CodeFile) domain.AnalysisMetrics {
	metrics := domain.AnalysisMetrics{TotalFiles: len(files)}
	if len(files) == 0 {
		return metrics
	}

	// 全量语料上的精确行重复：跨文件的相同行也算
	seen := make(map[string]int)
	totalComplexity := 0

	for _, file := range files {
		lines := strings.Split(file.Content, "\n")
		metrics.TotalLines += len(lines)
		totalComplexity += complexityOf(file.Content)

		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if len(trimmed) <= minDuplicateLineLength {
				continue
			}
			seen[trimmed]++
			if seen[trimmed] > 1 {
				metrics.DuplicateLines++
			}
		}
	}

	metrics.CodeComplexity = float64(totalComplexity) / float64(len(files))
	return metrics
}

// complexityOf 统计一个文件里控制结构模式的匹配次数
func complexityOf(content string) int {
	count := 0
	for _, re := range complexityPatterns {
		count += len(re.FindAllStringIndex(content, -1))
	}
	return count
}
