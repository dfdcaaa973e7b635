package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"code-inspector/internal/domain"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	goodColor = color.New(color.FgGreen, color.Bold)
	fairColor = color.New(color.FgYellow)
	poorColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

// gradeColor A/B 绿色，C/D 黄色，F 红色
func gradeColor(grade string) *color.Color {
	switch grade {
	case "A", "B":
		return goodColor
	case "C", "D":
		return fairColor
	default:
		return poorColor
	}
}

// printResult 打印一次分析的详情
func printResult(w io.Writer, r *domain.AnalysisResult) error {
	grade := r.Grade()
	var sb strings.Builder

	fmt.Fprintf(&sb, "\n================ [ 代码质量报告 ] ================\n")
	fmt.Fprintf(&sb, "分析 ID: %s\n", r.ID)
	fmt.Fprintf(&sb, "仓库: %s  分支: %s  Commit: %s\n", r.RepoID, r.Branch, r.CommitSHA)
	fmt.Fprintf(&sb, "时间: %s  类型: %s  触发: %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.Kind, r.Trigger)
	fmt.Fprintf(&sb, "总分: %s\n", gradeColor(grade).Sprintf("%.1f (%s)", r.Scores.Overall, grade))
	if r.Degraded {
		fmt.Fprintf(&sb, "%s\n", poorColor.Sprintf("⚠️ AI 分析降级，分数为兜底值: %s", r.DegradedReason))
	}
	fmt.Fprintf(&sb, "质量 %.1f | 安全 %.1f | 性能 %.1f | 可维护性 %.1f\n",
		r.Scores.Quality, r.Scores.Security, r.Scores.Performance, r.Scores.Maintainability)
	fmt.Fprintf(&sb, "文件 %d | 行数 %d | 复杂度 %.2f | 重复行 %d\n",
		r.Metrics.TotalFiles, r.Metrics.TotalLines, r.Metrics.CodeComplexity, r.Metrics.DuplicateLines)
	fmt.Fprintf(&sb, "问题: critical %d / major %d / minor %d / suggestion %d\n",
		r.Issues.Critical, r.Issues.Major, r.Issues.Minor, r.Issues.Suggestions)

	if r.Summary != "" {
		fmt.Fprintf(&sb, "\n📝 %s\n", r.Summary)
	}
	writeList(&sb, "👍 优点", r.Strengths)
	writeList(&sb, "👎 不足", r.Weaknesses)
	writeList(&sb, "💡 建议", r.Recommendations)
	sb.WriteString("==================================================\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	if len(r.IssueList) == 0 {
		return nil
	}
	return renderIssues(w, r.IssueList)
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "  - %s\n", item)
	}
}

// renderIssues 问题列表
func renderIssues(w io.Writer, issues []domain.Issue) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Severity", "Category", "Location", "Description"})

	var data [][]string
	for _, issue := range issues {
		location := issue.File
		if issue.Line > 0 {
			location = fmt.Sprintf("%s:%d", issue.File, issue.Line)
		}
		data = append(data, []string{
			severityLabel(issue.Severity),
			issue.Category,
			location,
			issue.Description,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func severityLabel(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return poorColor.Sprint(string(s))
	case domain.SeverityMajor:
		return fairColor.Sprint(string(s))
	case domain.SeverityMinor:
		return string(s)
	default:
		return dimColor.Sprint(string(s))
	}
}

// renderHistory 分析历史表格，最新的在前
func renderHistory(w io.Writer, results []*domain.AnalysisResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "📭 还没有分析记录，请先运行 analyze")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Time", "Commit", "Branch", "Overall", "Grade", "Quality", "Security", "Perf", "Maint", "Issues", "ID"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range results {
		grade := r.Grade()
		if r.Degraded {
			grade += "*"
		}
		data = append(data, []string{
			r.CreatedAt.Format("2006-01-02 15:04"),
			shortSHA(r.CommitSHA),
			r.Branch,
			strconv.FormatFloat(r.Scores.Overall, 'f', 1, 64),
			gradeColor(r.Grade()).Sprint(grade),
			strconv.FormatFloat(r.Scores.Quality, 'f', 1, 64),
			strconv.FormatFloat(r.Scores.Security, 'f', 1, 64),
			strconv.FormatFloat(r.Scores.Performance, 'f', 1, 64),
			strconv.FormatFloat(r.Scores.Maintainability, 'f', 1, 64),
			strconv.Itoa(r.Issues.Total()),
			r.ID,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "共 %d 条记录 (* 表示 AI 分析降级)\n", len(results))
	return err
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
