package service

import (
	"coder_edu_analytics/internal/config"
	"coder_edu_analytics/internal/model"
	"coder_edu_analytics/pkg/logger"
	"context"
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// fakeHistory 内存版 HistoryProvider
type fakeHistory struct {
	sessions []model.LearningSession
	progress []model.UserProgress
	periodic []model.PeriodicAnalytics

	sessionsErr error
	progressErr error
	periodicErr error
}

func (f *fakeHistory) FetchSessions(ctx context.Context, userID uint, since time.Time) ([]model.LearningSession, error) {
	if f.sessionsErr != nil {
		return nil, f.sessionsErr
	}
	var out []model.LearningSession
	for _, s := range f.sessions {
		if !s.StartTime.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeHistory) FetchProgress(ctx context.Context, userID uint, status model.CompletionStatus) ([]model.UserProgress, error) {
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	if status == "" {
		return f.progress, nil
	}
	var out []model.UserProgress
	for _, p := range f.progress {
		if p.CompletionStatus == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeHistory) FetchPeriodicAnalytics(ctx context.Context, userID uint, limit int, descending bool) ([]model.PeriodicAnalytics, error) {
	if f.periodicErr != nil {
		return nil, f.periodicErr
	}
	records := make([]model.PeriodicAnalytics, len(f.periodic))
	copy(records, f.periodic)
	sort.Slice(records, func(i, j int) bool {
		if descending {
			return records[i].PeriodStart.After(records[j].PeriodStart)
		}
		return records[i].PeriodStart.Before(records[j].PeriodStart)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// fakeModules 内存版 ModuleProvider
type fakeModules struct {
	modules []model.LearningModule
	err     error
}

func (f *fakeModules) ListAvailable(ctx context.Context, userID uint) ([]model.LearningModule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.modules, nil
}

var errProviderDown = errors.New("history provider unavailable")

func testAnalyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		MinConfidence:   60,
		PatternCacheTTL: time.Minute,
		DetectorTimeout: time.Second,
	}
}

func newTestPatternService(history HistoryProvider) *PatternService {
	return NewPatternService(history, nil, testAnalyticsConfig())
}

func floatPtr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

// buildSession 构造指定开始时间的会话
func buildSession(start time.Time, durationMinutes int, engagement float64) model.LearningSession {
	return model.LearningSession{
		UserID:          1,
		StartTime:       start,
		Duration:        durationMinutes,
		EngagementScore: engagement,
	}
}

func buildProgress(category string, difficulty model.ModuleDifficulty, status model.CompletionStatus, score *float64, completedAt *time.Time) model.UserProgress {
	return model.UserProgress{
		UserID:           1,
		CompletionStatus: status,
		FinalScore:       score,
		CompletedAt:      completedAt,
		TimeSpent:        30,
		Module: model.LearningModule{
			Category:          category,
			Difficulty:        difficulty,
			EstimatedDuration: 30,
		},
	}
}

func buildPeriodic(start time.Time, focus float64, sessionCount int) model.PeriodicAnalytics {
	return model.PeriodicAnalytics{
		UserID:      1,
		PeriodStart: start,
		Engagement: model.EngagementMetrics{
			FocusScore:             focus,
			SessionCount:           sessionCount,
			AverageSessionDuration: 25,
		},
	}
}
