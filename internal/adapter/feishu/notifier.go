package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"code-inspector/internal/common"
	"code-inspector/internal/domain"
)

// Notifier 实现了 port.Notifier 接口，分析完成后推送飞书卡片
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	retryDelay time.Duration
}

func NewNotifier(webhook string) *Notifier {
	if webhook == "" {
		log.Println("⚠️ 警告: 飞书 Webhook 为空，完成通知将被跳过")
	}
	return &Notifier{
		webhookURL: webhook,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryDelay: 500 * time.Millisecond,
	}
}

// Enabled 是否配置了 Webhook
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// Notify 发送飞书卡片消息 (Schema 2.0)
func (n *Notifier) Notify(ctx context.Context, repo *domain.Repo, result *domain.AnalysisResult) error {
	if n.webhookURL == "" {
		return common.NewError(common.ErrCodeNotification, "Webhook URL 为空")
	}

	body, err := json.Marshal(buildCard(repo, result))
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "构造卡片失败", err)
	}

	err = common.Do(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if reqErr != nil {
			return common.Permanent(reqErr)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, postErr := n.httpClient.Do(req)
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &statusError{code: resp.StatusCode}
		}
		return nil
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(n.retryDelay),
		common.WithRetryIf(retryable),
	)
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "发送请求失败", err)
	}

	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("飞书 API 报错: 状态码 %d", e.code)
}

// retryable 4xx 说明请求本身有问题，重试没有意义；429 限流除外
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// buildCard 构造分析完成的卡片
func buildCard(repo *domain.Repo, result *domain.AnalysisResult) map[string]interface{} {
	title := fmt.Sprintf("📊 代码质量报告: %s", repo.FullName)
	template := "blue"
	if result.Degraded {
		title = fmt.Sprintf("⚠️ 代码质量报告 (降级): %s", repo.FullName)
		template = "orange"
	}

	s := result.Scores
	mdContent := fmt.Sprintf(`**🏆 总分:** %.1f/10 (%s)  |  **分支:** %s  |  **Commit:** %s
**质量:** %.1f  |  **安全:** %.1f  |  **性能:** %.1f  |  **可维护性:** %.1f

**🐞 问题:** critical %d / major %d / minor %d / suggestion %d
**📁 文件:** %d  |  **行数:** %d  |  **复杂度:** %.2f  |  **重复行:** %d

**🤖 AI评价:**
%s
`,
		s.Overall, result.Grade(), result.Branch, shortSHA(result.CommitSHA),
		s.Quality, s.Security, s.Performance, s.Maintainability,
		result.Issues.Critical, result.Issues.Major, result.Issues.Minor, result.Issues.Suggestions,
		result.Metrics.TotalFiles, result.Metrics.TotalLines, result.Metrics.CodeComplexity, result.Metrics.DuplicateLines,
		result.Summary)

	if result.Degraded {
		mdContent += fmt.Sprintf("\n**降级原因:** %s\n", result.DegradedReason)
	}
	if len(result.Recommendations) > 0 {
		mdContent += "\n**💡 建议:**\n- " + strings.Join(result.Recommendations, "\n- ") + "\n"
	}

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"schema": "2.0",
			"config": map[string]interface{}{
				"update_multi": true,
			},
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": title,
				},
				"template": template,
			},
			"body": map[string]interface{}{
				"direction": "vertical",
				"elements": []map[string]interface{}{
					{
						"tag":       "markdown",
						"content":   mdContent,
						"text_size": "normal",
					},
					{
						"tag": "button",
						"text": map[string]interface{}{
							"tag":     "plain_text",
							"content": "🔗 查看源码",
						},
						"type": "primary",
						"behaviors": []map[string]interface{}{
							{
								"type":        "open_url",
								"default_url": repo.URL,
							},
						},
					},
				},
			},
		},
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
