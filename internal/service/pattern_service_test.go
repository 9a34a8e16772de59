package service

import (
	"coder_edu_analytics/internal/model"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectOptimalTimingNeedsThreeSessions(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{sessions: []model.LearningSession{
		buildSession(now.Add(-24*time.Hour), 30, 80),
		buildSession(now.Add(-48*time.Hour), 30, 75),
	}}
	s := newTestPatternService(history)

	result := s.DetectOptimalTiming(context.Background(), 1, DetectOptions{})

	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, "Need more session data to detect timing patterns", result.Message)
	assert.Nil(t, result.Timing)
}

func TestDetectOptimalTimingFindsBestHour(t *testing.T) {
	now := time.Now()
	base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	var sessions []model.LearningSession
	// 连续 5 天早上 9 点的高参与度会话
	for i := 1; i <= 5; i++ {
		sessions = append(sessions, buildSession(base.AddDate(0, 0, -i).Add(9*time.Hour), 30, 90))
	}
	// 两次晚上 20 点的低参与度会话
	sessions = append(sessions,
		buildSession(base.AddDate(0, 0, -2).Add(20*time.Hour), 60, 50),
		buildSession(base.AddDate(0, 0, -4).Add(20*time.Hour), 60, 52),
	)
	s := newTestPatternService(&fakeHistory{sessions: sessions})

	result := s.DetectOptimalTiming(context.Background(), 1, DetectOptions{})

	require.NotNil(t, result.Timing)
	assert.Equal(t, 9, result.Timing.BestHour)
	assert.Equal(t, 35.0, result.Confidence) // 7 次会话 × 5
	assert.NotEmpty(t, result.Timing.Insights)
	assert.Contains(t, result.Timing.Insights[0], "morning")
}

func TestDetectOptimalTimingIdealLengthFollowsPeakEngagement(t *testing.T) {
	now := time.Now()
	sessions := []model.LearningSession{
		buildSession(now.Add(-1*24*time.Hour), 20, 60),
		buildSession(now.Add(-2*24*time.Hour), 45, 95),
		buildSession(now.Add(-3*24*time.Hour), 90, 70),
		buildSession(now.Add(-4*24*time.Hour), 30, 65),
	}
	s := newTestPatternService(&fakeHistory{sessions: sessions})

	result := s.DetectOptimalTiming(context.Background(), 1, DetectOptions{})

	require.NotNil(t, result.Timing)
	assert.Equal(t, 45.0, result.Timing.IdealSessionLength)
}

func TestDetectOptimalTimingIgnoresSessionsOutsideWindow(t *testing.T) {
	now := time.Now()
	sessions := []model.LearningSession{
		buildSession(now.Add(-100*24*time.Hour), 30, 90),
		buildSession(now.Add(-90*24*time.Hour), 30, 90),
		buildSession(now.Add(-1*24*time.Hour), 30, 80),
		buildSession(now.Add(-2*24*time.Hour), 30, 80),
	}
	s := newTestPatternService(&fakeHistory{sessions: sessions})

	result := s.DetectOptimalTiming(context.Background(), 1, DetectOptions{})

	// 60 天窗口内只有 2 次会话
	assert.Equal(t, 0.0, result.Confidence)
}

func TestDetectEngagementPatternsImproving(t *testing.T) {
	// 专注度从 60 严格递增到 82
	base := time.Now().AddDate(0, 0, -12*7)
	var records []model.PeriodicAnalytics
	for i := 0; i < 12; i++ {
		records = append(records, buildPeriodic(base.AddDate(0, 0, i*7), 60+float64(i)*2, 3))
	}
	s := newTestPatternService(&fakeHistory{periodic: records})

	result := s.DetectEngagementPatterns(context.Background(), 1, DetectOptions{})

	require.NotNil(t, result.Engagement)
	assert.Contains(t, result.Engagement.Patterns, "improving_engagement")
	assert.Greater(t, result.Engagement.FocusTrend, 0.2)
	assert.Equal(t, 100.0, result.Confidence) // min(12×12, 100)
	assert.NotEmpty(t, result.Engagement.Recommendations)
}

func TestDetectEngagementPatternsDecliningAddsWarning(t *testing.T) {
	base := time.Now().AddDate(0, 0, -8*7)
	var records []model.PeriodicAnalytics
	for i := 0; i < 8; i++ {
		records = append(records, buildPeriodic(base.AddDate(0, 0, i*7), 90-float64(i)*4, 3))
	}
	s := newTestPatternService(&fakeHistory{periodic: records})

	result := s.DetectEngagementPatterns(context.Background(), 1, DetectOptions{})

	require.NotNil(t, result.Engagement)
	assert.Contains(t, result.Engagement.Patterns, "declining_engagement")
	assert.Less(t, result.Engagement.FocusTrend, -0.2)

	var hasWarning bool
	for _, r := range result.Engagement.Recommendations {
		if r == "Your focus has been slipping recently, consider shorter sessions with breaks" {
			hasWarning = true
		}
	}
	assert.True(t, hasWarning)
}

func TestDetectEngagementPatternsNeedsThreeRecords(t *testing.T) {
	base := time.Now().AddDate(0, 0, -14)
	s := newTestPatternService(&fakeHistory{periodic: []model.PeriodicAnalytics{
		buildPeriodic(base, 70, 3),
		buildPeriodic(base.AddDate(0, 0, 7), 72, 4),
	}})

	result := s.DetectEngagementPatterns(context.Background(), 1, DetectOptions{})

	assert.Equal(t, 0.0, result.Confidence)
	assert.NotEmpty(t, result.Message)
}

func TestDetectLearningVelocitySteadyPace(t *testing.T) {
	// 10 个模块，每天完成一个
	base := time.Now().AddDate(0, 0, -20)
	var progress []model.UserProgress
	for i := 0; i < 10; i++ {
		progress = append(progress, buildProgress("algorithms", model.DifficultyBeginner,
			model.StatusCompleted, floatPtr(80), timePtr(base.AddDate(0, 0, i))))
	}
	s := newTestPatternService(&fakeHistory{progress: progress})

	result := s.DetectLearningVelocity(context.Background(), 1, DetectOptions{})

	require.NotNil(t, result.Velocity)
	// 7 个模块跨 6 天 ≈ 8.17 模块/周
	assert.InDelta(t, 7.0/6.0*7.0, result.Velocity.AverageVelocity, 1e-9)
	assert.Contains(t, result.Velocity.Patterns, "high_velocity")
	assert.Contains(t, result.Velocity.Patterns, "consistent_pace")
	assert.Equal(t, 60.0, result.Confidence) // 4 个窗口 × 15
}

func TestDetectLearningVelocityZeroTimeSpan(t *testing.T) {
	completedAt := time.Now().AddDate(0, 0, -3)
	var progress []model.UserProgress
	for i := 0; i < 3; i++ {
		progress = append(progress, buildProgress("algorithms", model.DifficultyBeginner,
			model.StatusCompleted, floatPtr(80), timePtr(completedAt)))
	}
	s := newTestPatternService(&fakeHistory{progress: progress})

	result := s.DetectLearningVelocity(context.Background(), 1, DetectOptions{})

	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, "Insufficient time span to calculate velocity", result.Message)
}

func TestDetectLearningVelocityNeedsThreeCompleted(t *testing.T) {
	now := time.Now()
	progress := []model.UserProgress{
		buildProgress("algorithms", model.DifficultyBeginner, model.StatusCompleted, floatPtr(80), timePtr(now.AddDate(0, 0, -2))),
		buildProgress("algorithms", model.DifficultyBeginner, model.StatusCompleted, floatPtr(85), timePtr(now.AddDate(0, 0, -1))),
		buildProgress("algorithms", model.DifficultyBeginner, model.StatusInProgress, nil, nil),
	}
	s := newTestPatternService(&fakeHistory{progress: progress})

	result := s.DetectLearningVelocity(context.Background(), 1, DetectOptions{})

	assert.Equal(t, 0.0, result.Confidence)
}

func TestDetectStrugglePatternsFlagsWeakCategory(t *testing.T) {
	now := time.Now()
	var progress []model.UserProgress
	// 类别 X：5 条记录，只完成 1 条且得分 40
	progress = append(progress, buildProgress("X", model.DifficultyBeginner,
		model.StatusCompleted, floatPtr(40), timePtr(now.AddDate(0, 0, -5))))
	for i := 0; i < 4; i++ {
		progress = append(progress, buildProgress("X", model.DifficultyBeginner,
			model.StatusInProgress, nil, nil))
	}
	// 类别 Y：表现正常
	progress = append(progress, buildProgress("Y", model.DifficultyBeginner,
		model.StatusCompleted, floatPtr(90), timePtr(now.AddDate(0, 0, -3))))

	s := newTestPatternService(&fakeHistory{progress: progress})

	result := s.DetectStrugglePatterns(context.Background(), 1, DetectOptions{})

	require.NotNil(t, result.Struggle)
	assert.Equal(t, 48.0, result.Confidence) // 6 条记录 × 8

	var found *model.StruggleArea
	for i := range result.Struggle.Struggles {
		area := result.Struggle.Struggles[i]
		if area.Type == "category_struggle" && area.Name == "X" {
			found = &area
		}
	}
	require.NotNil(t, found, "category X should be flagged")
	assert.Equal(t, "high", found.Severity)
	assert.InDelta(t, 0.2, found.CompletionRate, 1e-9)
	assert.Equal(t, "high", result.Struggle.OverallLevel)
}

func TestDetectStrugglePatternsNeedsFiveRecords(t *testing.T) {
	now := time.Now()
	var progress []model.UserProgress
	for i := 0; i < 4; i++ {
		progress = append(progress, buildProgress("X", model.DifficultyBeginner,
			model.StatusCompleted, floatPtr(50), timePtr(now.AddDate(0, 0, -i))))
	}
	s := newTestPatternService(&fakeHistory{progress: progress})

	result := s.DetectStrugglePatterns(context.Background(), 1, DetectOptions{})

	assert.Equal(t, 0.0, result.Confidence)
}

func TestDetectPatternsPartialFailureKeepsOtherResults(t *testing.T) {
	base := time.Now().AddDate(0, 0, -12*7)
	var records []model.PeriodicAnalytics
	for i := 0; i < 12; i++ {
		records = append(records, buildPeriodic(base.AddDate(0, 0, i*7), 60+float64(i)*2, 3))
	}
	var progress []model.UserProgress
	for i := 0; i < 10; i++ {
		progress = append(progress, buildProgress("algorithms", model.DifficultyBeginner,
			model.StatusCompleted, floatPtr(85), timePtr(base.AddDate(0, 0, i))))
	}

	history := &fakeHistory{
		sessionsErr: errProviderDown,
		periodic:    records,
		progress:    progress,
	}
	s := newTestPatternService(history)

	results, err := s.DetectPatterns(context.Background(), 1, DetectOptions{})

	assert.NoError(t, err)
	// 会话数据源故障只影响时段检测，其余照常返回
	require.Contains(t, results, model.PatternEngagement)
	require.Contains(t, results, model.PatternVelocity)
	require.Contains(t, results, model.PatternStruggle)

	timing, ok := results[model.PatternOptimalTiming]
	require.True(t, ok, "failed detector surfaces an error result")
	assert.Equal(t, 0.0, timing.Confidence)
	assert.NotEmpty(t, timing.Error)
}

func TestDetectPatternsFiltersLowConfidence(t *testing.T) {
	// 只有 3 条周期记录：置信度 36，低于默认下限 60
	base := time.Now().AddDate(0, 0, -21)
	history := &fakeHistory{periodic: []model.PeriodicAnalytics{
		buildPeriodic(base, 70, 3),
		buildPeriodic(base.AddDate(0, 0, 7), 72, 3),
		buildPeriodic(base.AddDate(0, 0, 14), 74, 3),
	}}
	s := newTestPatternService(history)

	results, err := s.DetectPatterns(context.Background(), 1, DetectOptions{
		PatternTypes: []model.PatternType{model.PatternEngagement},
	})

	assert.NoError(t, err)
	assert.NotContains(t, results, model.PatternEngagement)

	// 显式放宽下限后可以拿到
	results, err = s.DetectPatterns(context.Background(), 1, DetectOptions{
		PatternTypes:  []model.PatternType{model.PatternEngagement},
		MinConfidence: 30,
	})
	assert.NoError(t, err)
	assert.Contains(t, results, model.PatternEngagement)
}

func TestDetectPatternsTypeSelection(t *testing.T) {
	now := time.Now()
	var sessions []model.LearningSession
	for i := 1; i <= 15; i++ {
		sessions = append(sessions, buildSession(now.AddDate(0, 0, -i), 30, 80))
	}
	s := newTestPatternService(&fakeHistory{sessions: sessions})

	results, err := s.DetectPatterns(context.Background(), 1, DetectOptions{
		PatternTypes: []model.PatternType{model.PatternOptimalTiming},
	})

	assert.NoError(t, err)
	assert.Contains(t, results, model.PatternOptimalTiming)
	assert.Len(t, results, 1)
}

func TestDetectPatternsAllSentinelRunsEveryDetector(t *testing.T) {
	history := &fakeHistory{} // 空历史：全部检测置信度 0，均被过滤
	s := newTestPatternService(history)

	results, err := s.DetectPatterns(context.Background(), 1, DetectOptions{
		PatternTypes: []model.PatternType{model.PatternTypeAll},
	})

	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestPatternConfidenceAlwaysInRange(t *testing.T) {
	// 大量样本下置信度仍被限制在 100
	now := time.Now()
	var sessions []model.LearningSession
	for i := 0; i < 50; i++ {
		sessions = append(sessions, buildSession(now.Add(-time.Duration(i*7)*time.Hour), 30, 80))
	}
	s := newTestPatternService(&fakeHistory{sessions: sessions})

	result := s.DetectOptimalTiming(context.Background(), 1, DetectOptions{})

	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 100.0)
}
