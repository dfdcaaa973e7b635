package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"code-inspector/internal/common"
	"code-inspector/internal/domain"
	"code-inspector/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ port.Notifier = (*Notifier)(nil)

// mockFeishuServer 创建模拟的飞书 Webhook 服务器，按顺序返回状态码
func mockFeishuServer(t *testing.T, calls *int32, statusCodes []int, validatePayload func(*testing.T, map[string]interface{})) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var payload map[string]interface{}
		assert.NoError(t, json.Unmarshal(body, &payload))
		if validatePayload != nil {
			validatePayload(t, payload)
		}

		code := statusCodes[len(statusCodes)-1]
		if int(n) <= len(statusCodes) {
			code = statusCodes[n-1]
		}
		w.WriteHeader(code)
		w.Write([]byte(`{"code": 0, "msg": "success"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestNotifier(url string) *Notifier {
	n := NewNotifier(url)
	n.retryDelay = time.Millisecond
	return n
}

func sampleRepo() *domain.Repo {
	return &domain.Repo{ID: "github-1", FullName: "octo/widgets", URL: "https://github.com/octo/widgets"}
}

func sampleResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		ID:              "id-1",
		RepoID:          "github-1",
		CommitSHA:       "0123456789abcdef",
		Branch:          "main",
		Scores:          domain.ScoreBreakdown{Overall: 8.3, Quality: 7.5, Security: 8.8, Performance: 9.2, Maintainability: 7.6},
		Issues:          domain.IssueCount{Major: 1},
		Summary:         "整体良好",
		Recommendations: []string{"补充测试"},
	}
}

func TestNotifier_Notify(t *testing.T) {
	tests := []struct {
		name            string
		result          *domain.AnalysisResult
		statusCodes     []int
		expectError     bool
		expectCalls     int32
		validatePayload func(*testing.T, map[string]interface{})
	}{
		{
			name:        "成功发送通知",
			result:      sampleResult(),
			statusCodes: []int{http.StatusOK},
			expectCalls: 1,
			validatePayload: func(t *testing.T, payload map[string]interface{}) {
				assert.Equal(t, "interactive", payload["msg_type"])

				card := payload["card"].(map[string]interface{})
				assert.Equal(t, "2.0", card["schema"])

				header := card["header"].(map[string]interface{})
				assert.Equal(t, "blue", header["template"])
				title := header["title"].(map[string]interface{})
				assert.Contains(t, title["content"], "octo/widgets")

				body := card["body"].(map[string]interface{})
				elements := body["elements"].([]interface{})
				assert.Len(t, elements, 2) // markdown + button

				md := elements[0].(map[string]interface{})["content"].(string)
				assert.Contains(t, md, "8.3/10 (B)")
				assert.Contains(t, md, "0123456")
				assert.NotContains(t, md, "0123456789")
				assert.Contains(t, md, "补充测试")
			},
		},
		{
			name: "降级结果使用橙色卡片",
			result: func() *domain.AnalysisResult {
				r := sampleResult()
				r.Degraded = true
				r.DegradedReason = "AI 调用失败"
				return r
			}(),
			statusCodes: []int{http.StatusOK},
			expectCalls: 1,
			validatePayload: func(t *testing.T, payload map[string]interface{}) {
				header := payload["card"].(map[string]interface{})["header"].(map[string]interface{})
				assert.Equal(t, "orange", header["template"])
				body := payload["card"].(map[string]interface{})["body"].(map[string]interface{})
				md := body["elements"].([]interface{})[0].(map[string]interface{})["content"].(string)
				assert.Contains(t, md, "AI 调用失败")
			},
		},
		{
			name:        "服务端错误后重试成功",
			result:      sampleResult(),
			statusCodes: []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusOK},
			expectCalls: 3,
		},
		{
			name:        "服务端一直出错",
			result:      sampleResult(),
			statusCodes: []int{http.StatusServiceUnavailable},
			expectError: true,
			expectCalls: 4,
		},
		{
			name:        "4xx 不重试",
			result:      sampleResult(),
			statusCodes: []int{http.StatusBadRequest},
			expectError: true,
			expectCalls: 1,
		},
		{
			name:        "限流 429 会重试",
			result:      sampleResult(),
			statusCodes: []int{http.StatusTooManyRequests, http.StatusOK},
			expectCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := mockFeishuServer(t, &calls, tt.statusCodes, tt.validatePayload)

			err := newTestNotifier(server.URL).Notify(context.Background(), sampleRepo(), tt.result)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, common.IsCode(err, common.ErrCodeNotification))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&statusError{code: http.StatusBadGateway}))
	assert.True(t, retryable(&statusError{code: http.StatusTooManyRequests}))
	assert.False(t, retryable(&statusError{code: http.StatusForbidden}))
	assert.False(t, retryable(fmt.Errorf("wrapped: %w", &statusError{code: http.StatusNotFound})))
	assert.True(t, retryable(errors.New("connection reset by peer")))
}

func TestNotifier_EmptyWebhook(t *testing.T) {
	n := NewNotifier("")
	assert.False(t, n.Enabled())

	err := n.Notify(context.Background(), sampleRepo(), sampleResult())
	assert.Equal(t, common.ErrCodeNotification, common.CodeOf(err))
}

func TestNotifier_ContextCancelled(t *testing.T) {
	var calls int32
	server := mockFeishuServer(t, &calls, []int{http.StatusInternalServerError}, nil)

	n := newTestNotifier(server.URL)
	n.retryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := n.Notify(ctx, sampleRepo(), sampleResult())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
