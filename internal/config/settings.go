package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 CODE_INSPECTOR_WORKER_COUNT 对应 worker.count
const EnvPrefix = "CODE_INSPECTOR"

const defaultDSN = "host=localhost user=postgres password=123456 dbname=code_inspector port=5432 sslmode=disable TimeZone=Asia/Shanghai"

// GitHubSettings 远程文件树采集
type GitHubSettings struct {
	Token       string `mapstructure:"token"`
	MaxFiles    int    `mapstructure:"max_files"`
	MaxFileSize int    `mapstructure:"max_file_size"`
}

// GeminiSettings AI 语义分析
type GeminiSettings struct {
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
	PromptFiles     int    `mapstructure:"prompt_files"`
	PromptLines     int    `mapstructure:"prompt_lines"`
	PromptMaxChars  int    `mapstructure:"prompt_max_chars"`
}

// WorkerSettings 后台分析 worker 和定时任务
type WorkerSettings struct {
	Count      int           `mapstructure:"count"`
	QueueSize  int           `mapstructure:"queue_size"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	Schedule   string        `mapstructure:"schedule"` // 为空时不启用定时分析
}

// Settings 应用配置
type Settings struct {
	DatabaseDSN   string         `mapstructure:"database_dsn"`
	FeishuWebhook string         `mapstructure:"feishu_webhook"`
	GitHub        GitHubSettings `mapstructure:"github"`
	Gemini        GeminiSettings `mapstructure:"gemini"`
	Worker        WorkerSettings `mapstructure:"worker"`
}

// LoadSettings 只读取环境变量、.env 和默认值
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags 加载配置，优先级: 命令行参数 > 环境变量 > .env 文件 > 默认值
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	// .env 只补齐尚未设置的环境变量，文件不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("database_dsn", defaultDSN)
	v.SetDefault("feishu_webhook", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.max_files", 100)
	v.SetDefault("github.max_file_size", 100_000)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.max_output_tokens", 4000)
	v.SetDefault("gemini.prompt_files", 20)
	v.SetDefault("gemini.prompt_lines", 20)
	v.SetDefault("gemini.prompt_max_chars", 30000)
	v.SetDefault("worker.count", 3)
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("worker.run_timeout", 5*time.Minute)
	v.SetDefault("worker.schedule", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 兼容不带前缀的常用环境变量，带前缀的优先
	_ = v.BindEnv("database_dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_DSN")
	_ = v.BindEnv("feishu_webhook", EnvPrefix+"_FEISHU_WEBHOOK", "FEISHU_WEBHOOK")
	_ = v.BindEnv("github.token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")

	if flags != nil {
		bindFlag(v, flags, "database_dsn", "dsn")
		bindFlag(v, flags, "feishu_webhook", "feishu-webhook")
		bindFlag(v, flags, "github.max_files", "max-files")
		bindFlag(v, flags, "github.max_file_size", "max-file-size")
		bindFlag(v, flags, "gemini.model", "model")
		bindFlag(v, flags, "gemini.max_output_tokens", "max-output-tokens")
		bindFlag(v, flags, "worker.count", "workers")
		bindFlag(v, flags, "worker.queue_size", "queue-size")
		bindFlag(v, flags, "worker.run_timeout", "run-timeout")
		bindFlag(v, flags, "worker.schedule", "schedule")
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	settings.Worker.Schedule = strings.TrimSpace(settings.Worker.Schedule)
	return &settings, nil
}

// RegisterFlags 注册可覆盖配置的命令行参数
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("dsn", "", "Postgres 连接串")
	fs.String("feishu-webhook", "", "飞书机器人 Webhook")
	fs.Int("max-files", 0, "单次分析最多采集的文件数")
	fs.Int("max-file-size", 0, "单个文件的大小上限 (字节)")
	fs.String("model", "", "Gemini 模型名")
	fs.Int("max-output-tokens", 0, "Gemini 最大输出 token 数")
	fs.Int("workers", 0, "后台分析 worker 数")
	fs.Int("queue-size", 0, "分析队列长度")
	fs.Duration("run-timeout", 0, "单次分析超时")
	fs.String("schedule", "", "定时分析的 cron 表达式，例如 \"0 3 * * *\"")
}

// bindFlag 只有显式传入的参数才覆盖配置，未传入的零值不生效
func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) {
	if f := flags.Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}

// ValidateSettings 检查配置是否可用
func ValidateSettings(s *Settings) error {
	if s.DatabaseDSN == "" {
		return errors.New("database_dsn 不能为空")
	}
	if s.GitHub.MaxFiles <= 0 {
		return errors.New("github.max_files 必须为正数")
	}
	if s.GitHub.MaxFileSize <= 0 {
		return errors.New("github.max_file_size 必须为正数")
	}
	if s.Gemini.MaxOutputTokens <= 0 {
		return errors.New("gemini.max_output_tokens 必须为正数")
	}
	if s.Worker.Count <= 0 {
		return errors.New("worker.count 必须为正数")
	}
	if s.Worker.RunTimeout <= 0 {
		return errors.New("worker.run_timeout 必须为正数")
	}
	if s.Worker.Schedule != "" {
		if _, err := cron.ParseStandard(s.Worker.Schedule); err != nil {
			return fmt.Errorf("worker.schedule 不合法: %w", err)
		}
	}
	return nil
}
