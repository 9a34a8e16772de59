package service

import (
	"coder_edu_analytics/internal/config"
	"coder_edu_analytics/internal/model"
	"coder_edu_analytics/pkg/logger"
	"coder_edu_analytics/pkg/monitoring"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 各检测方法的样本下限与阈值
const (
	timingWindowDays     = 60
	timingMinSessions    = 3
	timingMinBucketSize  = 2
	timingMinLengthPairs = 3

	engagementRecordLimit       = 12
	engagementMinRecords        = 3
	engagementHighConsistency   = 80.0
	engagementLowConsistency    = 40.0
	engagementTrendThreshold    = 0.2
	engagementConfidencePerItem = 12.0

	velocityMinCompleted      = 3
	velocityWindowSize        = 7
	velocityHighThreshold     = 3.0
	velocityLowThreshold      = 1.0
	velocityConsistentPace    = 75.0
	velocityTrendThreshold    = 0.2
	velocityConfidencePerItem = 15.0

	struggleMinRecords          = 5
	struggleCategoryRate        = 0.6
	struggleCategoryScore       = 65.0
	struggleDifficultyRate      = 0.5
	struggleDifficultyScore     = 60.0
	struggleCompletionWeight    = 0.6
	struggleScoreWeight         = 0.4
	struggleScoreBaseline       = 70.0
	struggleHighSeverity        = 50.0
	struggleMediumSeverity      = 25.0
	struggleConfidencePerItem   = 8.0
	timingConfidencePerSession  = 5.0
)

// DetectOptions 模式检测参数
type DetectOptions struct {
	// TimeRange 覆盖最佳时段检测的回溯窗口，0 表示默认 60 天
	TimeRange time.Duration
	// PatternTypes 为空或包含 PatternTypeAll 时运行全部检测方法
	PatternTypes []model.PatternType
	// MinConfidence 低于该置信度的结果被过滤，0 表示使用配置默认值
	MinConfidence float64
	// NoCache 跳过 Redis 缓存
	NoCache bool
}

type detectorFunc func(ctx context.Context, userID uint, opts DetectOptions) *model.PatternResult

// PatternService 行为模式检测服务。除可热更新的阈值配置外无状态，
// 仅依赖注入的历史数据源。
type PatternService struct {
	History HistoryProvider
	Redis   *redis.Client

	mu        sync.RWMutex
	analytics config.AnalyticsConfig

	detectors map[model.PatternType]detectorFunc
}

func NewPatternService(history HistoryProvider, rdb *redis.Client, cfg config.AnalyticsConfig) *PatternService {
	s := &PatternService{
		History:   history,
		Redis:     rdb,
		analytics: cfg,
	}

	// 静态注册表，检测方法集合编译期可见
	s.detectors = map[model.PatternType]detectorFunc{
		model.PatternOptimalTiming: s.DetectOptimalTiming,
		model.PatternEngagement:    s.DetectEngagementPatterns,
		model.PatternVelocity:      s.DetectLearningVelocity,
		model.PatternStruggle:      s.DetectStrugglePatterns,
	}
	return s
}

// SetAnalyticsConfig 配置热更新入口，由 configwatcher 回调触发
func (s *PatternService) SetAnalyticsConfig(cfg config.AnalyticsConfig) {
	s.mu.Lock()
	s.analytics = cfg
	s.mu.Unlock()
}

func (s *PatternService) analyticsConfig() config.AnalyticsConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analytics
}

// DetectPatterns 运行选定的检测方法，单个方法失败不影响其余方法。
// 置信度低于 MinConfidence 的结果不会出现在返回值中。
func (s *PatternService) DetectPatterns(ctx context.Context, userID uint, opts DetectOptions) (map[model.PatternType]*model.PatternResult, error) {
	minConfidence := opts.MinConfidence
	if minConfidence <= 0 {
		minConfidence = s.analyticsConfig().MinConfidence
	}

	types := s.resolveTypes(opts.PatternTypes)

	cacheKey := s.cacheKey(userID, types, minConfidence, opts.TimeRange)
	if !opts.NoCache {
		if cached, ok := s.cachedPatterns(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	results := make(map[model.PatternType]*model.PatternResult, len(types))
	for _, t := range types {
		detector, ok := s.detectors[t]
		if !ok {
			logger.Log.Warn("unknown pattern type requested", zap.String("type", string(t)))
			continue
		}

		result := s.runDetector(ctx, t, detector, userID, opts)
		if result == nil {
			continue
		}
		if result.Confidence < minConfidence && result.Error == "" {
			continue
		}
		results[t] = result
	}

	if !opts.NoCache {
		s.storePatterns(ctx, cacheKey, results)
	}

	return results, nil
}

// runDetector 兜住单个检测方法的 panic，保证批量检测不中断
func (s *PatternService) runDetector(ctx context.Context, t model.PatternType, detector detectorFunc, userID uint, opts DetectOptions) (result *model.PatternResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("pattern detector panic",
				zap.String("type", string(t)),
				zap.Uint("userId", userID),
				zap.Any("panic", r),
			)
			result = &model.PatternResult{
				Type:  t,
				Error: fmt.Sprintf("detector failed: %v", r),
			}
		}
		status := "ok"
		if result == nil || result.Error != "" {
			status = "error"
		} else if result.Confidence == 0 {
			status = "insufficient"
		}
		monitoring.ObserveDetection(string(t), status, time.Since(start))
	}()

	return detector(ctx, userID, opts)
}

func (s *PatternService) resolveTypes(requested []model.PatternType) []model.PatternType {
	all := []model.PatternType{
		model.PatternOptimalTiming,
		model.PatternEngagement,
		model.PatternVelocity,
		model.PatternStruggle,
	}
	if len(requested) == 0 {
		return all
	}
	for _, t := range requested {
		if t == model.PatternTypeAll {
			return all
		}
	}
	return requested
}

// fetchTimeout 历史数据源是唯一的阻塞点，对其单独加超时
func (s *PatternService) fetchTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.analyticsConfig().DetectorTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func errorResult(t model.PatternType, err error) *model.PatternResult {
	logger.Log.Error("pattern detector failed", zap.String("type", string(t)), zap.Error(err))
	return &model.PatternResult{Type: t, Error: err.Error()}
}

func insufficientResult(t model.PatternType, message string) *model.PatternResult {
	return &model.PatternResult{Type: t, Confidence: 0, Message: message}
}

// DetectOptimalTiming 基于最近 60 天会话找出最佳学习时段
func (s *PatternService) DetectOptimalTiming(ctx context.Context, userID uint, opts DetectOptions) *model.PatternResult {
	timeRange := opts.TimeRange
	if timeRange <= 0 {
		timeRange = timingWindowDays * 24 * time.Hour
	}

	fctx, cancel := s.fetchTimeout(ctx)
	defer cancel()
	sessions, err := s.History.FetchSessions(fctx, userID, time.Now().Add(-timeRange))
	if err != nil {
		return errorResult(model.PatternOptimalTiming, err)
	}

	if len(sessions) < timingMinSessions {
		return insufficientResult(model.PatternOptimalTiming, "Need more session data to detect timing patterns")
	}

	// 1. 按小时和星期分桶
	hourBuckets := make(map[int][]float64)
	dayBuckets := make(map[time.Weekday][]float64)
	for _, sess := range sessions {
		engagement := sess.EngagementOrDefault()
		hourBuckets[sess.StartTime.Hour()] = append(hourBuckets[sess.StartTime.Hour()], engagement)
		dayBuckets[sess.StartTime.Weekday()] = append(dayBuckets[sess.StartTime.Weekday()], engagement)
	}

	// 2. 最佳小时 = argmax(平均参与度 × 一致性/100)，只看 ≥2 次会话的桶
	var hourlyStats []model.HourStat
	bestHour, bestHourScore := -1, -1.0
	for hour, values := range hourBuckets {
		if len(values) < timingMinBucketSize {
			continue
		}
		avg := mean(values)
		consistency := calculateConsistency(values)
		hourlyStats = append(hourlyStats, model.HourStat{
			Hour:              hour,
			SessionCount:      len(values),
			AverageEngagement: avg,
			Consistency:       consistency,
		})
		if score := avg * consistency / 100; score > bestHourScore {
			bestHour, bestHourScore = hour, score
		}
	}
	// 样本过散时退化为所有桶里参与度最高的小时
	if bestHour < 0 {
		for hour, values := range hourBuckets {
			if avg := mean(values); avg > bestHourScore {
				bestHour, bestHourScore = hour, avg
			}
		}
	}
	sort.Slice(hourlyStats, func(i, j int) bool { return hourlyStats[i].Hour < hourlyStats[j].Hour })

	// 3. 最佳星期 = argmax(平均参与度)，不加一致性权重
	var dailyStats []model.DayStat
	var bestDay time.Weekday
	bestDayScore := -1.0
	for day, values := range dayBuckets {
		if len(values) < timingMinBucketSize {
			continue
		}
		avg := mean(values)
		dailyStats = append(dailyStats, model.DayStat{
			Day:               day.String(),
			SessionCount:      len(values),
			AverageEngagement: avg,
		})
		if avg > bestDayScore {
			bestDay, bestDayScore = day, avg
		}
	}
	if bestDayScore < 0 {
		for day, values := range dayBuckets {
			if avg := mean(values); avg > bestDayScore {
				bestDay, bestDayScore = day, avg
			}
		}
	}
	sort.Slice(dailyStats, func(i, j int) bool { return dailyStats[i].Day < dailyStats[j].Day })

	// 4. 理想会话时长：样本足够时取参与度最高那次的时长，否则取均值
	idealLength := idealSessionLength(sessions)

	confidence := clamp(float64(len(sessions))*timingConfidencePerSession, 0, 100)

	return &model.PatternResult{
		Type:       model.PatternOptimalTiming,
		Confidence: confidence,
		Timing: &model.TimingPattern{
			BestHour:           bestHour,
			BestDay:            bestDay.String(),
			IdealSessionLength: idealLength,
			HourlyStats:        hourlyStats,
			DailyStats:         dailyStats,
			Insights:           timingInsights(bestHour, bestDay, idealLength),
		},
	}
}

func idealSessionLength(sessions []model.LearningSession) float64 {
	type pair struct {
		duration   float64
		engagement float64
	}
	var pairs []pair
	var durations []float64
	for _, s := range sessions {
		if s.Duration <= 0 {
			continue
		}
		pairs = append(pairs, pair{float64(s.Duration), s.EngagementOrDefault()})
		durations = append(durations, float64(s.Duration))
	}
	if len(pairs) < timingMinLengthPairs {
		return mean(durations)
	}
	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.engagement > best.engagement {
			best = p
		}
	}
	return best.duration
}

func timingInsights(bestHour int, bestDay time.Weekday, idealLength float64) []string {
	timeOfDay := "evening"
	if bestHour < 12 {
		timeOfDay = "morning"
	} else if bestHour < 17 {
		timeOfDay = "afternoon"
	}

	return []string{
		fmt.Sprintf("You are most engaged in the %s, around %d:00", timeOfDay, bestHour),
		fmt.Sprintf("%s is your strongest day for learning", bestDay),
		fmt.Sprintf("Sessions of about %.0f minutes work best for you", idealLength),
	}
}

// DetectEngagementPatterns 基于最近的周期聚合记录识别参与度模式
func (s *PatternService) DetectEngagementPatterns(ctx context.Context, userID uint, opts DetectOptions) *model.PatternResult {
	fctx, cancel := s.fetchTimeout(ctx)
	defer cancel()
	records, err := s.History.FetchPeriodicAnalytics(fctx, userID, engagementRecordLimit, true)
	if err != nil {
		return errorResult(model.PatternEngagement, err)
	}

	if len(records) < engagementMinRecords {
		return insufficientResult(model.PatternEngagement, "Need more engagement data to detect patterns")
	}

	// 取回为倒序（最近 12 条），趋势按时间升序计算
	focusScores := make([]float64, len(records))
	sessionCounts := make([]float64, len(records))
	for i, r := range records {
		j := len(records) - 1 - i
		focusScores[j] = r.Engagement.FocusScore
		sessionCounts[j] = float64(r.Engagement.SessionCount)
	}

	focusTrend := calculateTrend(focusScores)
	sessionTrend := calculateTrend(sessionCounts)
	consistency := calculateConsistency(focusScores)

	var patterns []string
	if consistency > engagementHighConsistency {
		patterns = append(patterns, "high_consistency")
	}
	if consistency < engagementLowConsistency {
		patterns = append(patterns, "inconsistent_engagement")
	}
	if focusTrend > engagementTrendThreshold {
		patterns = append(patterns, "improving_engagement")
	}
	if focusTrend < -engagementTrendThreshold {
		patterns = append(patterns, "declining_engagement")
	}
	if sessionTrend > engagementTrendThreshold {
		patterns = append(patterns, "increasing_frequency")
	}

	recommendations := engagementRecommendations(patterns)
	if focusTrend < -engagementTrendThreshold {
		recommendations = append(recommendations, "Your focus has been slipping recently, consider shorter sessions with breaks")
	}

	confidence := clamp(float64(len(records))*engagementConfidencePerItem, 0, 100)

	return &model.PatternResult{
		Type:       model.PatternEngagement,
		Confidence: confidence,
		Engagement: &model.EngagementPattern{
			FocusTrend:      focusTrend,
			SessionTrend:    sessionTrend,
			Consistency:     consistency,
			Patterns:        patterns,
			Recommendations: recommendations,
		},
	}
}

var engagementAdvice = map[string]string{
	"high_consistency":        "Your study rhythm is very stable, keep it up",
	"inconsistent_engagement": "Try fixing a regular study schedule to build a habit",
	"improving_engagement":    "Your engagement keeps improving, a good time to raise difficulty",
	"declining_engagement":    "Engagement is trending down, try switching topics or formats",
	"increasing_frequency":    "You are studying more often, remember to leave time for review",
}

func engagementRecommendations(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if advice, ok := engagementAdvice[p]; ok {
			out = append(out, advice)
		}
	}
	return out
}

// DetectLearningVelocity 用 7 项滑动窗口计算模块完成速度（模块/周）
func (s *PatternService) DetectLearningVelocity(ctx context.Context, userID uint, opts DetectOptions) *model.PatternResult {
	fctx, cancel := s.fetchTimeout(ctx)
	defer cancel()
	progress, err := s.History.FetchProgress(fctx, userID, model.StatusCompleted)
	if err != nil {
		return errorResult(model.PatternVelocity, err)
	}

	var completed []model.UserProgress
	for _, p := range progress {
		if p.CompletedAt != nil {
			completed = append(completed, p)
		}
	}
	if len(completed) < velocityMinCompleted {
		return insufficientResult(model.PatternVelocity, "Need more completed modules to calculate learning velocity")
	}

	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CompletedAt.Before(*completed[j].CompletedAt)
	})

	// 窗口大小取 7 和样本量的较小值，时间跨度为 0 的窗口丢弃
	windowSize := velocityWindowSize
	if len(completed) < windowSize {
		windowSize = len(completed)
	}
	var velocities []float64
	for i := 0; i+windowSize <= len(completed); i++ {
		first := *completed[i].CompletedAt
		last := *completed[i+windowSize-1].CompletedAt
		spanDays := last.Sub(first).Hours() / 24
		if spanDays <= 0 {
			continue
		}
		velocities = append(velocities, float64(windowSize)/spanDays*7)
	}

	if len(velocities) == 0 {
		return insufficientResult(model.PatternVelocity, "Insufficient time span to calculate velocity")
	}

	avgVelocity := mean(velocities)
	trend := calculateTrend(velocities)
	consistency := calculateConsistency(velocities)

	var patterns []string
	if avgVelocity > velocityHighThreshold {
		patterns = append(patterns, "high_velocity")
	}
	if avgVelocity < velocityLowThreshold {
		patterns = append(patterns, "low_velocity")
	}
	if consistency > velocityConsistentPace {
		patterns = append(patterns, "consistent_pace")
	}
	if trend > velocityTrendThreshold {
		patterns = append(patterns, "accelerating")
	}
	if trend < -velocityTrendThreshold {
		patterns = append(patterns, "decelerating")
	}

	confidence := clamp(float64(len(velocities))*velocityConfidencePerItem, 0, 100)

	return &model.PatternResult{
		Type:       model.PatternVelocity,
		Confidence: confidence,
		Velocity: &model.VelocityPattern{
			AverageVelocity: avgVelocity,
			Trend:           trend,
			Consistency:     consistency,
			Patterns:        patterns,
		},
	}
}

type struggleGroup struct {
	total       int
	completed   int
	scoreSum    float64
	scoredCount int
}

func (g *struggleGroup) completionRate() float64 {
	if g.total == 0 {
		return 0
	}
	return float64(g.completed) / float64(g.total)
}

func (g *struggleGroup) averageScore() float64 {
	if g.scoredCount == 0 {
		return 0
	}
	return g.scoreSum / float64(g.scoredCount)
}

// DetectStrugglePatterns 按类别和难度分组找出困难区域
func (s *PatternService) DetectStrugglePatterns(ctx context.Context, userID uint, opts DetectOptions) *model.PatternResult {
	fctx, cancel := s.fetchTimeout(ctx)
	defer cancel()
	progress, err := s.History.FetchProgress(fctx, userID, "")
	if err != nil {
		return errorResult(model.PatternStruggle, err)
	}

	if len(progress) < struggleMinRecords {
		return insufficientResult(model.PatternStruggle, "Need more progress data to identify struggle patterns")
	}

	categories := make(map[string]*struggleGroup)
	difficulties := make(map[string]*struggleGroup)
	for _, p := range progress {
		accumulate(categories, p.Module.Category, p)
		accumulate(difficulties, string(p.Module.Difficulty), p)
	}

	var struggles []model.StruggleArea
	for name, g := range categories {
		if isStruggling(g, struggleCategoryRate, struggleCategoryScore) {
			struggles = append(struggles, struggleArea("category_struggle", name, g))
		}
	}
	for name, g := range difficulties {
		if isStruggling(g, struggleDifficultyRate, struggleDifficultyScore) {
			struggles = append(struggles, struggleArea("difficulty_struggle", name, g))
		}
	}
	sort.Slice(struggles, func(i, j int) bool {
		if struggles[i].Type != struggles[j].Type {
			return struggles[i].Type < struggles[j].Type
		}
		return struggles[i].Name < struggles[j].Name
	})

	confidence := clamp(float64(len(progress))*struggleConfidencePerItem, 0, 100)

	return &model.PatternResult{
		Type:       model.PatternStruggle,
		Confidence: confidence,
		Struggle: &model.StrugglePattern{
			OverallLevel: overallStruggleLevel(struggles),
			Struggles:    struggles,
		},
	}
}

func accumulate(groups map[string]*struggleGroup, key string, p model.UserProgress) {
	if key == "" {
		return
	}
	g, ok := groups[key]
	if !ok {
		g = &struggleGroup{}
		groups[key] = g
	}
	g.total++
	if p.CompletionStatus == model.StatusCompleted {
		g.completed++
		if p.FinalScore != nil && *p.FinalScore > 0 {
			g.scoreSum += *p.FinalScore
			g.scoredCount++
		}
	}
}

// isStruggling 无评分样本时只看完成率，避免把未评分当低分
func isStruggling(g *struggleGroup, rateThreshold, scoreThreshold float64) bool {
	if g.completionRate() < rateThreshold {
		return true
	}
	return g.scoredCount > 0 && g.averageScore() < scoreThreshold
}

func struggleArea(areaType, name string, g *struggleGroup) model.StruggleArea {
	completionPenalty := (1 - g.completionRate()) * 100
	scorePenalty := 0.0
	if g.scoredCount > 0 {
		scorePenalty = clamp(struggleScoreBaseline-g.averageScore(), 0, 100)
	}
	severity := completionPenalty*struggleCompletionWeight + scorePenalty*struggleScoreWeight

	level := "low"
	if severity > struggleHighSeverity {
		level = "high"
	} else if severity > struggleMediumSeverity {
		level = "medium"
	}

	return model.StruggleArea{
		Type:           areaType,
		Name:           name,
		CompletionRate: g.completionRate(),
		AverageScore:   g.averageScore(),
		Severity:       level,
	}
}

func overallStruggleLevel(struggles []model.StruggleArea) string {
	if len(struggles) == 0 {
		return "none"
	}
	mediumCount := 0
	for _, s := range struggles {
		switch s.Severity {
		case "high":
			return "high"
		case "medium":
			mediumCount++
		}
	}
	if mediumCount > 1 {
		return "medium"
	}
	return "low"
}

// --- Redis 结果缓存 ---

func (s *PatternService) cacheKey(userID uint, types []model.PatternType, minConfidence float64, timeRange time.Duration) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	sort.Strings(names)
	return fmt.Sprintf("analytics:patterns:%d:%s:%.0f:%d", userID, strings.Join(names, ","), minConfidence, int64(timeRange/time.Second))
}

func (s *PatternService) cachedPatterns(ctx context.Context, key string) (map[model.PatternType]*model.PatternResult, bool) {
	if s.Redis == nil {
		return nil, false
	}
	raw, err := s.Redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("pattern cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var results map[model.PatternType]*model.PatternResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		logger.Log.Warn("pattern cache decode failed", zap.Error(err))
		return nil, false
	}
	return results, true
}

func (s *PatternService) storePatterns(ctx context.Context, key string, results map[model.PatternType]*model.PatternResult) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	ttl := s.analyticsConfig().PatternCacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if err := s.Redis.Set(ctx, key, raw, ttl).Err(); err != nil {
		logger.Log.Warn("pattern cache write failed", zap.Error(err))
	}
}
