package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
)

// newClient 初始化 GitHub 客户端
// token 为空时匿名访问，限制 60 次/小时，只适合调试
func newClient(token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}

	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// ParseLocator 解析仓库定位符
// 支持 "owner/name"、"github.com/owner/name" 和 "https://github.com/owner/name(.git)"
func ParseLocator(locator string) (owner, name string, err error) {
	raw := strings.TrimSpace(locator)
	if raw == "" {
		return "", "", fmt.Errorf("仓库定位符为空")
	}

	path := raw
	if strings.Contains(raw, "://") {
		u, parseErr := url.Parse(raw)
		if parseErr != nil {
			return "", "", fmt.Errorf("无法解析仓库 URL %s: %w", raw, parseErr)
		}
		if u.Host != "github.com" && u.Host != "www.github.com" {
			return "", "", fmt.Errorf("不支持的代码托管平台: %s", u.Host)
		}
		path = u.Path
	} else if strings.HasPrefix(raw, "github.com/") {
		path = strings.TrimPrefix(raw, "github.com/")
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("无法解析仓库 %s: 需要 owner/name 格式", raw)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
