package filter

import (
	"path"
	"strings"

	"code-inspector/internal/domain"

	"github.com/go-enry/go-enry/v2"
)

const (
	// DefaultMaxFileSize 单文件大小上限 (字节)，等于或超过的文件不采集
	DefaultMaxFileSize = 100_000
	// DefaultMaxFiles 一次分析最多采集的文件数
	DefaultMaxFiles = 100
)

// DefaultExtensions 可识别的源码扩展名
var DefaultExtensions = []string{
	".js", ".jsx", ".ts", ".tsx",
	".py", ".java", ".go", ".rs",
	".cpp", ".c", ".h", ".cs",
	".php", ".rb", ".swift", ".kt",
	".scala", ".vue", ".svelte",
}

// DefaultIgnoredDirs 不进入的目录：依赖缓存、构建产物、版本控制元数据
var DefaultIgnoredDirs = []string{
	"node_modules", ".git", "dist", "build", ".next",
	"coverage", "vendor", "__pycache__", "target",
}

// SourceFilter 实现了 port.Filter 接口
type SourceFilter struct {
	extensions  map[string]struct{}
	ignoredDirs map[string]struct{}
	maxFileSize int
	maxFiles    int
}

// NewSourceFilter 创建过滤器，非正数的上限使用默认值
func NewSourceFilter(maxFileSize, maxFiles int) *SourceFilter {
	return NewSourceFilterWith(DefaultExtensions, DefaultIgnoredDirs, maxFileSize, maxFiles)
}

// NewSourceFilterWith 使用自定义的扩展名和忽略目录
func NewSourceFilterWith(extensions, ignoredDirs []string, maxFileSize, maxFiles int) *SourceFilter {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	f := &SourceFilter{
		extensions:  make(map[string]struct{}, len(extensions)),
		ignoredDirs: make(map[string]struct{}, len(ignoredDirs)),
		maxFileSize: maxFileSize,
		maxFiles:    maxFiles,
	}
	for _, ext := range extensions {
		f.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, dir := range ignoredDirs {
		f.ignoredDirs[dir] = struct{}{}
	}
	return f
}

// AcceptDir 目录名不在忽略列表里才进入
func (f *SourceFilter) AcceptDir(name string) bool {
	_, ignored := f.ignoredDirs[name]
	return !ignored
}

// AcceptFile 扩展名在白名单里且大小低于上限
func (f *SourceFilter) AcceptFile(filePath string, size int) bool {
	if size >= f.maxFileSize {
		return false
	}
	_, ok := f.extensions[strings.ToLower(path.Ext(filePath))]
	return ok
}

// MaxFiles 采集文件数上限
func (f *SourceFilter) MaxFiles() int {
	return f.maxFiles
}

// DetectLanguage 识别文件语言
// 先按扩展名识别；扩展名有歧义时 (例如 .h) 再结合内容判断
func DetectLanguage(filePath string, content []byte) domain.Language {
	name := path.Base(filePath)
	if lang, safe := enry.GetLanguageByExtension(name); safe && lang != "" {
		return domain.Language(lang)
	}
	if lang := enry.GetLanguage(name, content); lang != "" {
		return domain.Language(lang)
	}
	return domain.LanguageUnknown
}
