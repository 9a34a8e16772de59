package repository

import (
	"coder_edu_analytics/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

// HistoryRepository 历史数据只读仓库，实现 service.HistoryProvider
type HistoryRepository struct {
	DB *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{DB: db}
}

func (r *HistoryRepository) FetchSessions(ctx context.Context, userID uint, since time.Time) ([]model.LearningSession, error) {
	var sessions []model.LearningSession
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND start_time >= ?", userID, since).
		Order("start_time ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *HistoryRepository) FetchProgress(ctx context.Context, userID uint, status model.CompletionStatus) ([]model.UserProgress, error) {
	query := r.DB.WithContext(ctx).
		Preload("Module").
		Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("completion_status = ?", status)
	}

	var progress []model.UserProgress
	err := query.Find(&progress).Error
	return progress, err
}

func (r *HistoryRepository) FetchPeriodicAnalytics(ctx context.Context, userID uint, limit int, descending bool) ([]model.PeriodicAnalytics, error) {
	order := "period_start ASC"
	if descending {
		order = "period_start DESC"
	}

	query := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(order)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []model.PeriodicAnalytics
	err := query.Find(&records).Error
	return records, err
}
