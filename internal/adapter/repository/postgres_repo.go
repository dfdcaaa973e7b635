package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"code-inspector/internal/common"
	"code-inspector/internal/domain"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultHistoryLimit 查询历史记录时的默认条数
const DefaultHistoryLimit = 20

// PostgresRepo 实现了 port.Repository 接口
type PostgresRepo struct {
	db *gorm.DB
}

// NewPostgresRepo 初始化数据库连接并自动迁移表结构
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	// 1. 连接数据库
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 2. 自动迁移：repos 和 analysis_results 两张表，外键带级联删除
	if err := db.AutoMigrate(&domain.Repo{}, &domain.AnalysisResult{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return &PostgresRepo{db: db}, nil
}

// SaveAnalysis 保存仓库信息并写入一条分析记录，三步在同一个事务里：
// 1. 仓库 upsert，已存在时只刷新远程元数据，不覆盖 owner_user_id、created_at 和 last_analyzed_at
// 2. 插入分析记录 (只追加，不提供更新方法)
// 3. 刷新仓库的 last_analyzed_at
func (r *PostgresRepo) SaveAnalysis(ctx context.Context, repo *domain.Repo, result *domain.AnalysisResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	result.RepoID = repo.ID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertRepo(tx, repo); err != nil {
			return err
		}
		if err := tx.Create(result).Error; err != nil {
			return fmt.Errorf("写入分析记录失败: %w", err)
		}
		err := tx.Model(&domain.Repo{}).
			Where("id = ?", repo.ID).
			Update("last_analyzed_at", result.CreatedAt).Error
		if err != nil {
			return fmt.Errorf("更新 last_analyzed_at 失败: %w", err)
		}
		return nil
	})
}

func upsertRepo(tx *gorm.DB, repo *domain.Repo) error {
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"full_name", "url", "description", "language", "stars", "default_branch", "updated_at",
		}),
	}).Create(repo).Error
	if err != nil {
		return fmt.Errorf("保存仓库 %s 失败: %w", repo.FullName, err)
	}
	return nil
}

// GetAnalysis 按 id 获取分析记录
func (r *PostgresRepo) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, notFoundOr(err, "分析记录 %s 不存在", id)
	}
	return &result, nil
}

// LatestAnalysis 按创建时间倒序取最新一条
func (r *PostgresRepo) LatestAnalysis(ctx context.Context, repoID string) (*domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	err := r.db.WithContext(ctx).
		Where("repo_id = ?", repoID).
		Order("created_at DESC").
		First(&result).Error
	if err != nil {
		return nil, notFoundOr(err, "仓库 %s 还没有分析记录", repoID)
	}
	return &result, nil
}

// ListAnalyses 分析历史，最新的在前
func (r *PostgresRepo) ListAnalyses(ctx context.Context, repoID string, limit int) ([]*domain.AnalysisResult, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var results []*domain.AnalysisResult
	err := r.db.WithContext(ctx).
		Where("repo_id = ?", repoID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("查询分析历史失败: %w", err)
	}
	return results, nil
}

// ListRepos 所有被分析过的仓库，供定时任务使用
func (r *PostgresRepo) ListRepos(ctx context.Context) ([]*domain.Repo, error) {
	var repos []*domain.Repo
	if err := r.db.WithContext(ctx).Order("full_name").Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("查询仓库列表失败: %w", err)
	}
	return repos, nil
}

// DeleteRepo 删除仓库，分析记录由外键级联删除
func (r *PostgresRepo) DeleteRepo(ctx context.Context, repoID string) error {
	result := r.db.WithContext(ctx).Where("id = ?", repoID).Delete(&domain.Repo{})
	if result.Error != nil {
		return fmt.Errorf("删除仓库 %s 失败: %w", repoID, result.Error)
	}
	if result.RowsAffected == 0 {
		return common.NewError(common.ErrCodeNotFound, fmt.Sprintf("仓库 %s 不存在", repoID))
	}
	return nil
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.WrapError(common.ErrCodeNotFound, fmt.Sprintf(format, args...), err)
	}
	return fmt.Errorf("查询失败: %w", err)
}
