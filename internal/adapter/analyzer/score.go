package analyzer

import (
	"math"

	"code-inspector/internal/domain"
)

// Penalty 每个严重程度的扣分
type Penalty struct {
	Critical float64
	Major    float64
	Minor    float64
}

func (p Penalty) of(c domain.IssueCount) float64 {
	return p.Critical*float64(c.Critical) + p.Major*float64(c.Major) + p.Minor*float64(c.Minor)
}

// Weights 综合评分的参数
type Weights struct {
	Quality         Penalty
	Security        Penalty
	Performance     Penalty
	Maintainability Penalty

	MaxComplexityPenalty float64 // min(complexity/10, 这个值)
	DuplicateFactor      float64 // 重复率乘数
	MaxDuplicatePenalty  float64

	// 总分权重，和为 1
	QualityWeight         float64
	SecurityWeight        float64
	PerformanceWeight     float64
	MaintainabilityWeight float64
}

// DefaultWeights 默认扣分规则
// security 和 performance 只对 critical/major 扣分
func DefaultWeights() Weights {
	return Weights{
		Quality:         Penalty{Critical: 2.0, Major: 1.0, Minor: 0.5},
		Security:        Penalty{Critical: 2.5, Major: 1.2},
		Performance:     Penalty{Critical: 1.5, Major: 0.8},
		Maintainability: Penalty{Critical: 1.8, Major: 0.9, Minor: 0.3},

		MaxComplexityPenalty: 2.0,
		DuplicateFactor:      5,
		MaxDuplicatePenalty:  1.5,

		QualityWeight:         0.30,
		SecurityWeight:        0.25,
		PerformanceWeight:     0.25,
		MaintainabilityWeight: 0.20,
	}
}

// Compose 从满分 10 分开始扣分，结果限制在 [0,10] 并保留一位小数
func (w Weights) Compose(m domain.AnalysisMetrics, c domain.IssueCount) domain.ScoreBreakdown {
	complexityPenalty := math.Min(m.CodeComplexity/10, w.MaxComplexityPenalty)
	if complexityPenalty < 0 {
		complexityPenalty = 0
	}

	duplicatePenalty := 0.0
	if m.TotalLines > 0 {
		ratio := float64(m.DuplicateLines) / float64(m.TotalLines)
		duplicatePenalty = math.Min(ratio*w.DuplicateFactor, w.MaxDuplicatePenalty)
	}

	quality := clamp(10 - w.Quality.of(c) - complexityPenalty - duplicatePenalty)
	security := clamp(10 - w.Security.of(c))
	performance := clamp(10 - w.Performance.of(c))
	maintainability := clamp(10 - w.Maintainability.of(c) - complexityPenalty - duplicatePenalty)

	overall := quality*w.QualityWeight +
		security*w.SecurityWeight +
		performance*w.PerformanceWeight +
		maintainability*w.MaintainabilityWeight

	return domain.ScoreBreakdown{
		Overall:         round1(clamp(overall)),
		Quality:         round1(quality),
		Security:        round1(security),
		Performance:     round1(performance),
		Maintainability: round1(maintainability),
	}
}

// ComposeScore 使用默认权重
func ComposeScore(m domain.AnalysisMetrics, c domain.IssueCount) domain.ScoreBreakdown {
	return DefaultWeights().Compose(m, c)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
