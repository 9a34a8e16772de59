package service

import (
	"coder_edu_analytics/internal/model"
	"context"
	"time"
)

// HistoryProvider 历史数据访问接口。分析服务只读不写，
// 通过接口注入以便在测试中替换为内存实现。
type HistoryProvider interface {
	// FetchSessions 返回 since 之后的学习会话
	FetchSessions(ctx context.Context, userID uint, since time.Time) ([]model.LearningSession, error)
	// FetchProgress 返回用户进度，status 为空串时不过滤，Module 已预加载
	FetchProgress(ctx context.Context, userID uint, status model.CompletionStatus) ([]model.UserProgress, error)
	// FetchPeriodicAnalytics 返回周期聚合记录，limit <= 0 时不限制条数
	FetchPeriodicAnalytics(ctx context.Context, userID uint, limit int, descending bool) ([]model.PeriodicAnalytics, error)
}

// ModuleProvider 候选模块访问接口，用于下一模块推荐
type ModuleProvider interface {
	// ListAvailable 返回用户尚未完成的模块
	ListAvailable(ctx context.Context, userID uint) ([]model.LearningModule, error)
}
