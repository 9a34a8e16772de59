package model

import (
	"time"

	"gorm.io/gorm"
)

type CompletionStatus string

const (
	StatusNotStarted CompletionStatus = "not_started"
	StatusInProgress CompletionStatus = "in_progress"
	StatusCompleted  CompletionStatus = "completed"
)

type ModuleDifficulty string

const (
	DifficultyBeginner     ModuleDifficulty = "beginner"
	DifficultyIntermediate ModuleDifficulty = "intermediate"
	DifficultyAdvanced     ModuleDifficulty = "advanced"
	DifficultyExpert       ModuleDifficulty = "expert"
)

// DifficultyLevel 难度序数 beginner=1 ... expert=4，未知难度返回 0
func (d ModuleDifficulty) Level() int {
	switch d {
	case DifficultyBeginner:
		return 1
	case DifficultyIntermediate:
		return 2
	case DifficultyAdvanced:
		return 3
	case DifficultyExpert:
		return 4
	}
	return 0
}

// LearningSession 学习会话记录（由主后端写入，本服务只读）
type LearningSession struct {
	gorm.Model
	UserID          uint      `gorm:"index"`
	StartTime       time.Time `gorm:"index"`
	Duration        int       `gorm:"default:0"` // 分钟
	EngagementScore float64   `gorm:"default:0"` // 0-100，0 表示未采集
}

func (LearningSession) TableName() string {
	return "learning_sessions"
}

// EngagementOrDefault 未采集参与度时使用默认值 70
func (s LearningSession) EngagementOrDefault() float64 {
	if s.EngagementScore <= 0 {
		return 70
	}
	return s.EngagementScore
}

// LearningModule 学习模块
type LearningModule struct {
	gorm.Model
	Title             string           `gorm:"size:255;not null"`
	Category          string           `gorm:"size:100;index"`
	Difficulty        ModuleDifficulty `gorm:"type:enum('beginner','intermediate','advanced','expert');default:'beginner'"`
	EstimatedDuration int              `gorm:"default:0"` // 分钟
}

func (LearningModule) TableName() string {
	return "learning_modules"
}

// UserProgress 用户模块进度
type UserProgress struct {
	gorm.Model
	UserID           uint             `gorm:"index"`
	ModuleID         uint             `gorm:"index"`
	Module           LearningModule   `gorm:"foreignKey:ModuleID"`
	CompletionStatus CompletionStatus `gorm:"type:enum('not_started','in_progress','completed');default:'not_started'"`
	FinalScore       *float64         // 0-100，nil 表示未评分
	TimeSpent        int              `gorm:"default:0"` // 分钟
	CompletedAt      *time.Time
}

func (UserProgress) TableName() string {
	return "user_progress"
}

// EngagementMetrics 周期内的参与度聚合
type EngagementMetrics struct {
	FocusScore             float64 `gorm:"default:0" json:"focusScore"` // 0-100
	SessionCount           int     `gorm:"default:0" json:"sessionCount"`
	AverageSessionDuration float64 `gorm:"default:0" json:"averageSessionDuration"` // 分钟
}

// PeriodicAnalytics 周期参与度聚合记录（定时任务写入，本服务只读）
type PeriodicAnalytics struct {
	gorm.Model
	UserID      uint              `gorm:"index"`
	PeriodStart time.Time         `gorm:"index"`
	Engagement  EngagementMetrics `gorm:"embedded;embeddedPrefix:engagement_"`
}

func (PeriodicAnalytics) TableName() string {
	return "periodic_analytics"
}
