package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"code-inspector/internal/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultModel          = "gemini-2.5-flash-lite"
	DefaultMaxTokens      = 4000
	DefaultMaxPromptFiles = 20
	DefaultLinesPerFile   = 20
	DefaultMaxSummary     = 30000

	// FallbackScore 兜底时所有维度的分数
	FallbackScore   = 7.0
	FallbackSummary = "Automated analysis could not be completed. Basic metrics analysis performed."
)

// generator 抽象出 GenerateContent，*genai.GenerativeModel 天然满足
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// PromptLimits 控制送给模型的代码摘录大小
type PromptLimits struct {
	MaxFiles     int
	LinesPerFile int
	MaxChars     int
}

// DefaultPromptLimits 20 个文件、每个文件前 20 行、摘要最多 30000 字符
func DefaultPromptLimits() PromptLimits {
	return PromptLimits{
		MaxFiles:     DefaultMaxPromptFiles,
		LinesPerFile: DefaultLinesPerFile,
		MaxChars:     DefaultMaxSummary,
	}
}

// GeminiAppraiser 实现了 port.Appraiser 接口
type GeminiAppraiser struct {
	client *genai.Client
	model  generator
	limits PromptLimits
}

// 模型返回的 JSON 结构
type aiResponse struct {
	Scores struct {
		Overall         float64 `json:"overall"`
		Quality         float64 `json:"quality"`
		Security        float64 `json:"security"`
		Performance     float64 `json:"performance"`
		Maintainability float64 `json:"maintainability"`
	} `json:"scores"`
	Issues []struct {
		Severity    string `json:"severity"`
		Category    string `json:"category"`
		File        string `json:"file"`
		Line        int    `json:"line"`
		Description string `json:"description"`
		Suggestion  string `json:"suggestion"`
	} `json:"issues"`
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
}

// NewGeminiAppraiser 创建 Gemini 客户端
// modelName 为空时使用默认模型，maxTokens <= 0 时使用 4000
func NewGeminiAppraiser(ctx context.Context, apiKey, modelName string, maxTokens int, limits PromptLimits) (*GeminiAppraiser, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	model := client.GenerativeModel(modelName)
	// 强制要求返回 JSON，降低解析错误的概率
	model.ResponseMIMEType = "application/json"
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiAppraiser{
		client: client,
		model:  model,
		limits: limits.withDefaults(),
	}, nil
}

// Close 释放底层客户端
func (g *GeminiAppraiser) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Appraise 让模型找出代码问题并打分
// 任何失败都不会返回错误，而是给出带 Degraded 标记的兜底结果
func (g *GeminiAppraiser) Appraise(ctx context.Context, repo *domain.Repo, files []domain.CodeFile, metrics domain.AnalysisMetrics) domain.InferenceOutcome {
	prompt := BuildPrompt(repo, files, metrics, g.limits)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return degrade(repo, fmt.Errorf("AI 调用失败: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return degrade(repo, fmt.Errorf("AI 返回内容为空"))
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return degrade(repo, fmt.Errorf("AI 返回格式错误"))
	}

	res, err := parseAIResponse(string(text))
	if err != nil {
		return degrade(repo, err)
	}

	return domain.InferenceOutcome{Report: res.toReport()}
}

func degrade(repo *domain.Repo, err error) domain.InferenceOutcome {
	log.Printf("⚠️ [Gemini] %s 分析降级: %v", repo.FullName, err)
	return domain.InferenceOutcome{
		Report:   Fallback(),
		Degraded: true,
		Reason:   err.Error(),
	}
}

// Fallback 兜底结果：统一 7.0 分、一条 suggestion 级别的问题
func Fallback() domain.InferenceReport {
	return domain.InferenceReport{
		Scores: domain.UniformScore(FallbackScore),
		Issues: []domain.Issue{{
			Severity:    domain.SeveritySuggestion,
			Category:    "general",
			Description: "AI analysis was unavailable; only static metrics were evaluated.",
			Suggestion:  "Re-run the analysis later for a detailed review.",
		}},
		Summary:         FallbackSummary,
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{"Re-run the analysis when the AI service is available."},
	}
}

// BuildPrompt 构造提示词
func BuildPrompt(repo *domain.Repo, files []domain.CodeFile, metrics domain.AnalysisMetrics, limits PromptLimits) string {
	limits = limits.withDefaults()

	return fmt.Sprintf(`
你是一名资深的代码审查专家。请审查以下 GitHub 仓库的代码片段：

仓库: %s
主要语言: %s
采样文件数: %d
总行数: %d
平均复杂度: %.2f
重复行数: %d

代码摘录:
%s

请严格按照 JSON 格式返回分析结果，包含以下字段：
1. scores: 对象，包含 overall、quality、security、performance、maintainability，每项 1-10 分。
2. issues: 数组，每个元素包含 severity (critical|major|minor|suggestion)、category、file、line、description、suggestion。
3. summary: 一段总体评价。
4. strengths: 字符串数组，代码的优点。
5. weaknesses: 字符串数组，代码的不足。
6. recommendations: 字符串数组，改进建议。

请直接返回 JSON，不要包含 Markdown 格式标记。
`, repo.FullName, repo.Language, metrics.TotalFiles, metrics.TotalLines, metrics.CodeComplexity, metrics.DuplicateLines,
		CodeSummary(files, limits))
}

// CodeSummary 拼接前 MaxFiles 个文件的前 LinesPerFile 行，整体截断到 MaxChars 个字符
func CodeSummary(files []domain.CodeFile, limits PromptLimits) string {
	limits = limits.withDefaults()

	var sb strings.Builder
	for i, f := range files {
		if i >= limits.MaxFiles {
			break
		}
		lines := strings.Split(f.Content, "\n")
		if len(lines) > limits.LinesPerFile {
			lines = lines[:limits.LinesPerFile]
		}
		fmt.Fprintf(&sb, "--- %s (%s) ---\n%s\n\n", f.Path, f.Language, strings.Join(lines, "\n"))
	}

	summary := []rune(sb.String())
	if len(summary) > limits.MaxChars {
		summary = summary[:limits.MaxChars]
	}
	return string(summary)
}

func (l PromptLimits) withDefaults() PromptLimits {
	d := DefaultPromptLimits()
	if l.MaxFiles <= 0 {
		l.MaxFiles = d.MaxFiles
	}
	if l.LinesPerFile <= 0 {
		l.LinesPerFile = d.LinesPerFile
	}
	if l.MaxChars <= 0 {
		l.MaxChars = d.MaxChars
	}
	return l
}

// parseAIResponse 从模型原文里抠出 JSON
// 即使 AI 返回 "```json { ... } ```"，也能取到中间的 { ... }
func parseAIResponse(raw string) (*aiResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("无法提取 JSON, AI 原文: %s", raw)
	}

	clean := raw[start : end+1]

	var res aiResponse
	if err := json.Unmarshal([]byte(clean), &res); err != nil {
		return nil, fmt.Errorf("JSON 解析失败: %s | 原文: %s", err, clean)
	}
	return &res, nil
}

func (r *aiResponse) toReport() domain.InferenceReport {
	report := domain.InferenceReport{
		Scores: domain.ScoreBreakdown{
			Overall:         r.Scores.Overall,
			Quality:         r.Scores.Quality,
			Security:        r.Scores.Security,
			Performance:     r.Scores.Performance,
			Maintainability: r.Scores.Maintainability,
		},
		Issues:          make([]domain.Issue, 0, len(r.Issues)),
		Summary:         r.Summary,
		Strengths:       r.Strengths,
		Weaknesses:      r.Weaknesses,
		Recommendations: r.Recommendations,
	}
	for _, issue := range r.Issues {
		report.Issues = append(report.Issues, domain.Issue{
			Severity:    domain.ParseSeverity(issue.Severity),
			Category:    issue.Category,
			File:        issue.File,
			Line:        issue.Line,
			Description: issue.Description,
			Suggestion:  issue.Suggestion,
		})
	}
	return report
}
