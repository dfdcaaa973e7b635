package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	cause := errors.New("connection refused")

	wrapped := WrapError(ErrCodeGitHubAPI, "采集文件失败", cause)
	assert.Equal(t, "[GITHUB_API_ERROR] 采集文件失败: connection refused", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)

	plain := NewError(ErrCodeNotFound, "分析记录不存在")
	assert.Equal(t, "[NOT_FOUND] 分析记录不存在", plain.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, ErrCodeDatabase, CodeOf(WrapError(ErrCodeDatabase, "写入失败", errors.New("boom"))))

	// 被 fmt.Errorf 再包一层也能找到
	nested := fmt.Errorf("run failed: %w", NewError(ErrCodeInvalidInput, "bad locator"))
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(nested))
}

func TestIsCode(t *testing.T) {
	inner := NewError(ErrCodeNotFound, "missing")
	outer := WrapError(ErrCodeDatabase, "query", inner)

	assert.True(t, IsCode(outer, ErrCodeDatabase))
	assert.True(t, IsCode(outer, ErrCodeNotFound))
	assert.False(t, IsCode(outer, ErrCodeGitHubAPI))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeInternal))
	assert.False(t, IsCode(nil, ErrCodeInternal))
}
