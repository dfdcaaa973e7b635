package github

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"code-inspector/internal/adapter/filter"
	"code-inspector/internal/common"
	"code-inspector/internal/domain"
	"code-inspector/internal/port"

	"github.com/google/go-github/v53/github"
)

// Collector 实现了 port.SourceHost 接口
// 远程文件树的调用都不重试：根目录失败即整个采集失败，子项失败则跳过。
// 触发限流或者子项全部失败时，同样视为采集失败
type Collector struct {
	client *github.Client
	filter port.Filter
}

// NewCollector 初始化 GitHub 客户端
func NewCollector(token string, f port.Filter) *Collector {
	if f == nil {
		f = filter.NewSourceFilter(0, 0)
	}
	return &Collector{client: newClient(token), filter: f}
}

// Locate 获取仓库基础信息
func (c *Collector) Locate(ctx context.Context, locator string) (*domain.Repo, error) {
	owner, name, err := ParseLocator(locator)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeInvalidInput, "仓库定位符不合法", err)
	}

	item, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("GitHub API 调用失败 (%s/%s): %w", owner, name, err)
	}

	return &domain.Repo{
		ID:            fmt.Sprintf("github-%d", item.GetID()),
		FullName:      item.GetFullName(),
		URL:           item.GetHTMLURL(),
		Description:   item.GetDescription(),
		Language:      item.GetLanguage(),
		Stars:         item.GetStargazersCount(),
		DefaultBranch: item.GetDefaultBranch(),
	}, nil
}

// ResolveCommit 返回分支头部的 commit SHA
func (c *Collector) ResolveCommit(ctx context.Context, repo *domain.Repo, branch string) (string, error) {
	ref := refOf(repo, branch)
	if ref == "" {
		ref = "HEAD"
	}
	sha, _, err := c.client.Repositories.GetCommitSHA1(ctx, repo.Owner(), repo.Name(), ref, "")
	if err != nil {
		return "", fmt.Errorf("获取 %s@%s 的 commit 失败: %w", repo.FullName, ref, err)
	}
	return sha, nil
}

// CollectFiles 深度优先遍历并采集源文件
func (c *Collector) CollectFiles(ctx context.Context, repo *domain.Repo, branch string) ([]domain.CodeFile, error) {
	opts := &github.RepositoryContentGetOptions{Ref: refOf(repo, branch)}

	_, root, _, err := c.client.Repositories.GetContents(ctx, repo.Owner(), repo.Name(), "", opts)
	if err != nil {
		return nil, fmt.Errorf("读取 %s 根目录失败: %w", repo.FullName, err)
	}

	state := &walkState{files: make([]domain.CodeFile, 0, c.filter.MaxFiles())}
	if err := c.walk(ctx, repo, opts, root, state); err != nil {
		return nil, err
	}
	if len(state.files) == 0 && state.skipped > 0 {
		return nil, fmt.Errorf("采集 %s 失败: %d 个条目全部读取失败: %w", repo.FullName, state.skipped, state.lastErr)
	}
	return state.files, nil
}

// walkState 一次遍历累计的结果
type walkState struct {
	files   []domain.CodeFile
	skipped int
	lastErr error
}

// skip 记录一个读取失败的条目，限流错误直接返回让遍历终止
func (s *walkState) skip(repo *domain.Repo, kind, path string, err error) error {
	if isRateLimited(err) {
		return fmt.Errorf("采集 %s 时触发 GitHub 限流: %w", repo.FullName, err)
	}
	log.Printf("[Collector] 跳过%s %s: %v", kind, path, err)
	s.skipped++
	s.lastErr = err
	return nil
}

func isRateLimited(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	return errors.As(err, &rateErr) || errors.As(err, &abuseErr)
}

// walk 递归遍历目录
// 同一目录下的条目按路径排序后再访问，保证达到文件上限时的采样结果可复现
func (c *Collector) walk(ctx context.Context, repo *domain.Repo, opts *github.RepositoryContentGetOptions, entries []*github.RepositoryContent, state *walkState) error {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].GetPath() < entries[j].GetPath()
	})

	for _, entry := range entries {
		if len(state.files) >= c.filter.MaxFiles() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("采集 %s 被中断: %w", repo.FullName, err)
		}

		switch entry.GetType() {
		case "dir":
			if !c.filter.AcceptDir(entry.GetName()) {
				continue
			}
			_, children, _, err := c.client.Repositories.GetContents(ctx, repo.Owner(), repo.Name(), entry.GetPath(), opts)
			if err != nil {
				if err := state.skip(repo, "目录", entry.GetPath(), err); err != nil {
					return err
				}
				continue
			}
			if err := c.walk(ctx, repo, opts, children, state); err != nil {
				return err
			}

		case "file":
			if !c.filter.AcceptFile(entry.GetPath(), entry.GetSize()) {
				continue
			}
			file, err := c.fetchFile(ctx, repo, opts, entry.GetPath())
			if err != nil {
				if err := state.skip(repo, "文件", entry.GetPath(), err); err != nil {
					return err
				}
				continue
			}
			state.files = append(state.files, *file)
		}
	}
	return nil
}

func (c *Collector) fetchFile(ctx context.Context, repo *domain.Repo, opts *github.RepositoryContentGetOptions, path string) (*domain.CodeFile, error) {
	fc, _, _, err := c.client.Repositories.GetContents(ctx, repo.Owner(), repo.Name(), path, opts)
	if err != nil {
		return nil, err
	}
	if fc == nil {
		return nil, fmt.Errorf("%s 不是文件", path)
	}

	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("解码文件内容失败: %w", err)
	}

	size := fc.GetSize()
	if size == 0 {
		size = len(content)
	}

	return &domain.CodeFile{
		Path:     path,
		Content:  content,
		Language: filter.DetectLanguage(path, []byte(content)),
		Size:     size,
	}, nil
}

func refOf(repo *domain.Repo, branch string) string {
	if branch != "" {
		return branch
	}
	return repo.DefaultBranch
}
