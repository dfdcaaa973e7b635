package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"code-inspector/internal/adapter/filter"
	"code-inspector/internal/domain"

	"github.com/google/go-github/v53/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTree 模拟远程仓库的文件树
type fakeTree struct {
	mu        sync.Mutex
	dirs      map[string][]string // 目录 -> 直接子项 (完整路径，目录以 "/" 结尾)
	files     map[string]string   // 文件路径 -> 内容
	sizes     map[string]int      // 覆盖文件列表里声明的大小
	broken    map[string]bool     // 请求这些路径时返回 500
	limited   map[string]bool     // 请求这些路径时返回 403 限流
	requested []string
	refs      []string
}

func newFakeTree() *fakeTree {
	return &fakeTree{
		dirs:   map[string][]string{"": {}},
		files:  map[string]string{},
		sizes:  map[string]int{},
		broken:  map[string]bool{},
		limited: map[string]bool{},
	}
}

// addFile 添加文件并自动补齐父目录
func (f *fakeTree) addFile(p, content string) {
	f.files[p] = content
	entry := p
	for {
		parent := path.Dir(strings.TrimSuffix(entry, "/"))
		if parent == "." {
			parent = ""
		}
		_, existed := f.dirs[parent]
		if !contains(f.dirs[parent], entry) {
			f.dirs[parent] = append(f.dirs[parent], entry)
		}
		if existed {
			return
		}
		entry = parent + "/"
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakeTree) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "/repos/octo/widgets/contents/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}
		p := strings.TrimPrefix(r.URL.Path, prefix)

		f.mu.Lock()
		f.requested = append(f.requested, p)
		f.refs = append(f.refs, r.URL.Query().Get("ref"))
		f.mu.Unlock()

		if f.broken[p] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if f.limited[p] {
			w.Header().Set("X-RateLimit-Limit", "60")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if children, ok := f.dirs[p]; ok {
			var listing []*github.RepositoryContent
			for _, c := range children {
				if strings.HasSuffix(c, "/") {
					dir := strings.TrimSuffix(c, "/")
					listing = append(listing, &github.RepositoryContent{
						Type: github.String("dir"),
						Name: github.String(path.Base(dir)),
						Path: github.String(dir),
					})
					continue
				}
				size := len(f.files[c])
				if s, ok := f.sizes[c]; ok {
					size = s
				}
				listing = append(listing, &github.RepositoryContent{
					Type: github.String("file"),
					Name: github.String(path.Base(c)),
					Path: github.String(c),
					Size: github.Int(size),
				})
			}
			require.NoError(t, json.NewEncoder(w).Encode(listing))
			return
		}

		if content, ok := f.files[p]; ok {
			require.NoError(t, json.NewEncoder(w).Encode(&github.RepositoryContent{
				Type:     github.String("file"),
				Name:     github.String(path.Base(p)),
				Path:     github.String(p),
				Size:     github.Int(len(content)),
				Encoding: github.String("base64"),
				Content:  github.String(base64.StdEncoding.EncodeToString([]byte(content))),
			}))
			return
		}

		http.NotFound(w, r)
	}
}

// setupMockGitHubServer 创建一个模拟的 GitHub API 服务器
func setupMockGitHubServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Collector) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	baseURL, _ := url.Parse(server.URL + "/")
	client.BaseURL = baseURL

	return server, &Collector{client: client, filter: filter.NewSourceFilter(0, 0)}
}

func testRepo() *domain.Repo {
	return &domain.Repo{ID: "github-1", FullName: "octo/widgets", DefaultBranch: "main"}
}

func TestCollector_CollectFiles(t *testing.T) {
	tree := newFakeTree()
	tree.addFile("main.go", "package main\n\nfunc main() {}\n")
	tree.addFile("src/app.ts", "export const x = 1")
	tree.addFile("src/util/helper.py", "def helper():\n    return 1")
	tree.addFile("README.md", "# widgets")
	tree.addFile("node_modules/left-pad/index.js", "module.exports = 1")
	tree.addFile(".git/hooks/pre-commit.js", "x")
	tree.addFile("dist/bundle.js", "x")
	tree.addFile("src/huge.js", "big")
	tree.sizes["src/huge.js"] = 150_000

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	files, err := collector.CollectFiles(context.Background(), testRepo(), "develop")
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"main.go", "src/app.ts", "src/util/helper.py"}, paths)

	assert.Equal(t, "package main\n\nfunc main() {}\n", files[0].Content)
	assert.Equal(t, domain.Language("Go"), files[0].Language)
	assert.Equal(t, len(files[0].Content), files[0].Size)
	assert.Equal(t, domain.Language("Python"), files[2].Language)

	// 被拒绝的目录从不请求
	for _, p := range tree.requested {
		assert.False(t, strings.HasPrefix(p, "node_modules"), "不应进入 %s", p)
		assert.False(t, strings.HasPrefix(p, ".git"), "不应进入 %s", p)
		assert.False(t, strings.HasPrefix(p, "dist"), "不应进入 %s", p)
	}
	assert.NotContains(t, tree.requested, "src/huge.js")
	assert.NotContains(t, tree.requested, "README.md")

	// 显式指定的分支用于所有请求
	for _, ref := range tree.refs {
		assert.Equal(t, "develop", ref)
	}
}

func TestCollector_CollectFiles_DefaultBranch(t *testing.T) {
	tree := newFakeTree()
	tree.addFile("a.go", "package a")

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	_, err := collector.CollectFiles(context.Background(), testRepo(), "")
	require.NoError(t, err)
	require.NotEmpty(t, tree.refs)
	assert.Equal(t, "main", tree.refs[0])
}

func TestCollector_CollectFiles_Cap(t *testing.T) {
	tree := newFakeTree()
	for i := 0; i < 150; i++ {
		tree.addFile(fmt.Sprintf("pkg/f%03d.go", i), "package pkg")
	}

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	files, err := collector.CollectFiles(context.Background(), testRepo(), "")
	require.NoError(t, err)
	assert.Len(t, files, 100)
	assert.Equal(t, "pkg/f000.go", files[0].Path)
	assert.Equal(t, "pkg/f099.go", files[99].Path)
	assert.NotContains(t, tree.requested, "pkg/f100.go")
}

func TestCollector_CollectFiles_CustomCap(t *testing.T) {
	tree := newFakeTree()
	for i := 0; i < 5; i++ {
		tree.addFile(fmt.Sprintf("d%d/x.go", i), "package x")
	}

	_, collector := setupMockGitHubServer(t, tree.handler(t))
	collector.filter = filter.NewSourceFilter(0, 3)

	files, err := collector.CollectFiles(context.Background(), testRepo(), "")
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestCollector_CollectFiles_StableOrder(t *testing.T) {
	tree := newFakeTree()
	tree.addFile("b/two.go", "package b")
	tree.addFile("a/one.go", "package a")
	tree.addFile("c.go", "package c")
	// 模拟 API 以任意顺序返回目录项
	tree.dirs[""] = []string{"c.go", "b/", "a/"}

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	files, err := collector.CollectFiles(context.Background(), testRepo(), "")
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"a/one.go", "b/two.go", "c.go"}, paths)
}

func TestCollector_CollectFiles_SkipsFailedItems(t *testing.T) {
	tree := newFakeTree()
	tree.addFile("bad/x.go", "package bad")
	tree.addFile("good/broken.go", "package good")
	tree.addFile("good/ok.go", "package good")
	tree.broken["bad"] = true
	tree.broken["good/broken.go"] = true

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	files, err := collector.CollectFiles(context.Background(), testRepo(), "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "good/ok.go", files[0].Path)
}

func TestCollector_CollectFiles_AllItemsFailed(t *testing.T) {
	tree := newFakeTree()
	tree.addFile("a.go", "package a")
	tree.addFile("pkg/b.go", "package pkg")
	tree.broken["a.go"] = true
	tree.broken["pkg"] = true

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	files, err := collector.CollectFiles(context.Background(), testRepo(), "")
	require.Error(t, err)
	assert.Nil(t, files)
	assert.Contains(t, err.Error(), "2 个条目全部读取失败")
}

func TestCollector_CollectFiles_EmptyRepo(t *testing.T) {
	tree := newFakeTree()
	tree.addFile("README.md", "# widgets")

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	// 没有源文件、也没有失败的条目，不算采集失败
	files, err := collector.CollectFiles(context.Background(), testRepo(), "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCollector_CollectFiles_RateLimited(t *testing.T) {
	tree := newFakeTree()
	tree.addFile("a.go", "package a")
	tree.addFile("b.go", "package a")
	tree.addFile("c.go", "package a")
	tree.limited["b.go"] = true

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	// 已经采到 a.go，但限流后剩下的条目都会失败，整个采集作废
	files, err := collector.CollectFiles(context.Background(), testRepo(), "")
	require.Error(t, err)
	assert.Nil(t, files)

	var rateErr *github.RateLimitError
	assert.ErrorAs(t, err, &rateErr)
	assert.NotContains(t, tree.requested, "c.go")
}

func TestCollector_CollectFiles_RootFailure(t *testing.T) {
	tree := newFakeTree()
	tree.addFile("a.go", "package a")
	tree.broken[""] = true

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	files, err := collector.CollectFiles(context.Background(), testRepo(), "")
	assert.Error(t, err)
	assert.Nil(t, files)
	assert.Contains(t, err.Error(), "octo/widgets")
}

func TestCollector_CollectFiles_ContextCancelled(t *testing.T) {
	tree := newFakeTree()
	tree.addFile("a.go", "package a")

	_, collector := setupMockGitHubServer(t, tree.handler(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collector.CollectFiles(ctx, testRepo(), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollector_Locate(t *testing.T) {
	_, collector := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/widgets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&github.Repository{
			ID:              github.Int64(42),
			FullName:        github.String("octo/widgets"),
			HTMLURL:         github.String("https://github.com/octo/widgets"),
			Description:     github.String("Widgets"),
			Language:        github.String("Go"),
			StargazersCount: github.Int(7),
			DefaultBranch:   github.String("trunk"),
		})
	})

	repo, err := collector.Locate(context.Background(), "https://github.com/octo/widgets.git")
	require.NoError(t, err)
	assert.Equal(t, "github-42", repo.ID)
	assert.Equal(t, "octo/widgets", repo.FullName)
	assert.Equal(t, "trunk", repo.DefaultBranch)
	assert.Equal(t, 7, repo.Stars)
	assert.Equal(t, "Go", repo.Language)
}

func TestCollector_Locate_Errors(t *testing.T) {
	_, collector := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := collector.Locate(context.Background(), "not a locator")
	assert.Error(t, err)

	_, err = collector.Locate(context.Background(), "octo/missing")
	assert.Error(t, err)
}

func TestCollector_ResolveCommit(t *testing.T) {
	_, collector := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/widgets/commits/main", r.URL.Path)
		w.Write([]byte("0123456789abcdef0123456789abcdef01234567"))
	})

	sha, err := collector.ResolveCommit(context.Background(), testRepo(), "")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", sha)
}

func TestParseLocator(t *testing.T) {
	tests := []struct {
		input       string
		owner, name string
		expectError bool
	}{
		{input: "octo/widgets", owner: "octo", name: "widgets"},
		{input: " octo/widgets ", owner: "octo", name: "widgets"},
		{input: "github.com/octo/widgets", owner: "octo", name: "widgets"},
		{input: "https://github.com/octo/widgets", owner: "octo", name: "widgets"},
		{input: "https://github.com/octo/widgets.git", owner: "octo", name: "widgets"},
		{input: "https://github.com/octo/widgets/tree/main/src", owner: "octo", name: "widgets"},
		{input: "https://gitlab.com/octo/widgets", expectError: true},
		{input: "widgets", expectError: true},
		{input: "", expectError: true},
		{input: "/widgets", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			owner, name, err := ParseLocator(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.name, name)
		})
	}
}
