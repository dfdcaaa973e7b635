package service

import (
	"context"

	"code-inspector/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockSourceHost struct {
	mock.Mock
}

func (m *MockSourceHost) Locate(ctx context.Context, locator string) (*domain.Repo, error) {
	args := m.Called(ctx, locator)
	repo, _ := args.Get(0).(*domain.Repo)
	return repo, args.Error(1)
}

func (m *MockSourceHost) ResolveCommit(ctx context.Context, repo *domain.Repo, branch string) (string, error) {
	args := m.Called(ctx, repo, branch)
	return args.String(0), args.Error(1)
}

func (m *MockSourceHost) CollectFiles(ctx context.Context, repo *domain.Repo, branch string) ([]domain.CodeFile, error) {
	args := m.Called(ctx, repo, branch)
	files, _ := args.Get(0).([]domain.CodeFile)
	return files, args.Error(1)
}

type MockAppraiser struct {
	mock.Mock
}

func (m *MockAppraiser) Appraise(ctx context.Context, repo *domain.Repo, files []domain.CodeFile, metrics domain.AnalysisMetrics) domain.InferenceOutcome {
	args := m.Called(ctx, repo, files, metrics)
	return args.Get(0).(domain.InferenceOutcome)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SaveAnalysis(ctx context.Context, repo *domain.Repo, result *domain.AnalysisResult) error {
	args := m.Called(ctx, repo, result)
	return args.Error(0)
}

func (m *MockRepository) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, id)
	result, _ := args.Get(0).(*domain.AnalysisResult)
	return result, args.Error(1)
}

func (m *MockRepository) LatestAnalysis(ctx context.Context, repoID string) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, repoID)
	result, _ := args.Get(0).(*domain.AnalysisResult)
	return result, args.Error(1)
}

func (m *MockRepository) ListAnalyses(ctx context.Context, repoID string, limit int) ([]*domain.AnalysisResult, error) {
	args := m.Called(ctx, repoID, limit)
	results, _ := args.Get(0).([]*domain.AnalysisResult)
	return results, args.Error(1)
}

func (m *MockRepository) ListRepos(ctx context.Context) ([]*domain.Repo, error) {
	args := m.Called(ctx)
	repos, _ := args.Get(0).([]*domain.Repo)
	return repos, args.Error(1)
}

func (m *MockRepository) DeleteRepo(ctx context.Context, repoID string) error {
	args := m.Called(ctx, repoID)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, repo *domain.Repo, result *domain.AnalysisResult) error {
	args := m.Called(ctx, repo, result)
	return args.Error(0)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Enqueue(req domain.AnalysisRequest) error {
	args := m.Called(req)
	return args.Error(0)
}
