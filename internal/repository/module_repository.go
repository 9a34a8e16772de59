package repository

import (
	"coder_edu_analytics/internal/model"
	"context"

	"gorm.io/gorm"
)

// ModuleRepository 学习模块仓库，实现 service.ModuleProvider
type ModuleRepository struct {
	DB *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: db}
}

// ListAvailable 返回用户尚未完成的模块，作为下一模块推荐的候选集
func (r *ModuleRepository) ListAvailable(ctx context.Context, userID uint) ([]model.LearningModule, error) {
	completed := r.DB.Model(&model.UserProgress{}).
		Select("module_id").
		Where("user_id = ? AND completion_status = ?", userID, model.StatusCompleted)

	var modules []model.LearningModule
	err := r.DB.WithContext(ctx).
		Where("id NOT IN (?)", completed).
		Order("id ASC").
		Find(&modules).Error
	return modules, err
}
