package service

import (
	"coder_edu_analytics/internal/model"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	forecastMinPoints      = 3
	forecastMaxValue       = 100.0
	forecastDecayPerPeriod = 5.0

	engagementForecastMinPoints = 7
	engagementHighSessions      = 2.0
	engagementHighFocus         = 70.0
	engagementMediumSessions    = 1.0
	engagementMediumFocus       = 50.0
	engagementRiskHighShare     = 0.4
	engagementRiskMediumShare   = 0.2
	chronicLowSessionAverage    = 1.0

	likelihoodSteepness   = 6.0
	likelihoodStrongValue = 0.6
	likelihoodWeakValue   = 0.3

	recommendationLimit     = 5
	difficultyMaxLevel      = 4
	timeMatchWindowMinutes  = 10.0
	defaultPreferredMinutes = 30.0
	fastVelocityThreshold   = 1.0
	slowVelocityThreshold   = 0.5
)

// likelihoodWeights 完成可能性各指标权重，总和为 1
var likelihoodWeights = []struct {
	name   string
	weight float64
}{
	{"completionRate", 0.25},
	{"averageScore", 0.20},
	{"engagementScore", 0.20},
	{"learningVelocity", 0.15},
	{"timeSpent", 0.10},
	{"consistencyScore", 0.10},
}

// PredictionService 预测模型服务：时间序列预测、参与度预测、
// 完成可能性评分、下一模块推荐。全部为无状态的纯计算。
type PredictionService struct {
	History HistoryProvider
	Modules ModuleProvider
}

func NewPredictionService(history HistoryProvider, modules ModuleProvider) *PredictionService {
	return &PredictionService{History: history, Modules: modules}
}

// ForecastTimeSeries 对时间序列做线性外推，值域裁剪到 [0,100]
func (s *PredictionService) ForecastTimeSeries(data []model.TimeSeriesPoint, periods int) *model.TimeSeriesForecast {
	if len(data) < forecastMinPoints {
		return &model.TimeSeriesForecast{
			Forecast:   []model.ForecastPoint{},
			Method:     "insufficient_data",
			Confidence: 0,
		}
	}

	n := len(data)
	x := make([]float64, n)
	y := make([]float64, n)
	for i, p := range data {
		x[i] = float64(i)
		y[i] = p.ScalarValue()
	}
	reg := linearRegression(x, y)

	forecast := make([]model.ForecastPoint, 0, periods)
	for i := 1; i <= periods; i++ {
		predicted := clamp(reg.predict(float64(n-1+i)), 0, forecastMaxValue)
		// 置信度随预测距离衰减
		confidence := clamp(math.Abs(reg.Correlation)*100-math.Max(0, float64(i-1))*forecastDecayPerPeriod, 0, 100)
		forecast = append(forecast, model.ForecastPoint{
			Period:         i,
			PredictedValue: predicted,
			UpperBound:     clamp(predicted+reg.StandardError, 0, forecastMaxValue),
			LowerBound:     clamp(predicted-reg.StandardError, 0, forecastMaxValue),
			Confidence:     confidence,
		})
	}

	confidence := math.Round(math.Abs(reg.Correlation)*60 + math.Min(float64(n)*5, 40))

	return &model.TimeSeriesForecast{
		Forecast:   forecast,
		Trend:      trendDirection(reg.Slope),
		Method:     "linear_regression",
		Confidence: confidence,
	}
}

// ForecastPerformance 用周期聚合的专注度序列预测未来表现
func (s *PredictionService) ForecastPerformance(ctx context.Context, userID uint, periods int) (*model.TimeSeriesForecast, error) {
	records, err := s.History.FetchPeriodicAnalytics(ctx, userID, 0, false)
	if err != nil {
		return nil, err
	}
	points := make([]model.TimeSeriesPoint, len(records))
	for i, r := range records {
		score := r.Engagement.FocusScore
		points[i] = model.TimeSeriesPoint{AverageScore: &score}
	}
	return s.ForecastTimeSeries(points, periods), nil
}

// ForecastEngagement 带周内季节因子的参与度预测，data 按时间升序
func (s *PredictionService) ForecastEngagement(data []model.PeriodicAnalytics, days int) *model.EngagementForecast {
	if len(data) < engagementForecastMinPoints {
		return &model.EngagementForecast{
			Days:       []model.EngagementForecastDay{},
			Method:     "insufficient_data",
			Confidence: 0,
		}
	}

	n := len(data)
	sessions := make([]float64, n)
	focus := make([]float64, n)
	daySessionSums := make(map[time.Weekday][]float64)
	for i, r := range data {
		sessions[i] = float64(r.Engagement.SessionCount)
		focus[i] = r.Engagement.FocusScore
		wd := r.PeriodStart.Weekday()
		daySessionSums[wd] = append(daySessionSums[wd], sessions[i])
	}

	// 1. 周内季节因子 = 各星期平均会话数 / 整体平均会话数
	overallAvg := mean(sessions)
	factors := make(map[time.Weekday]float64)
	dayAverages := make(map[time.Weekday]float64)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		factors[wd] = 1
		if values, ok := daySessionSums[wd]; ok {
			dayAverages[wd] = mean(values)
			if overallAvg != 0 {
				factors[wd] = dayAverages[wd] / overallAvg
			}
		}
	}

	// 2. 会话数和专注度各自回归
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	sessionReg := linearRegression(x, sessions)
	focusReg := linearRegression(x, focus)
	correlationAvg := (math.Abs(sessionReg.Correlation) + math.Abs(focusReg.Correlation)) / 2

	// 3. 逐日外推
	today := time.Now().Weekday()
	forecastDays := make([]model.EngagementForecastDay, 0, days)
	lowDays := 0
	var lowDayNames []string
	for i := 1; i <= days; i++ {
		wd := time.Weekday((int(today) + i) % 7)
		factor := factors[wd]

		predictedSessions := math.Max(0, sessionReg.predict(float64(n+i))*factor)
		predictedFocus := clamp(focusReg.predict(float64(n+i))*factor, 0, 100)

		level := "low"
		if predictedSessions >= engagementHighSessions && predictedFocus >= engagementHighFocus {
			level = "high"
		} else if predictedSessions >= engagementMediumSessions && predictedFocus >= engagementMediumFocus {
			level = "medium"
		}
		if level == "low" {
			lowDays++
			lowDayNames = append(lowDayNames, wd.String())
		}

		forecastDays = append(forecastDays, model.EngagementForecastDay{
			Day:               i,
			DayOfWeek:         wd.String(),
			PredictedSessions: predictedSessions,
			PredictedFocus:    predictedFocus,
			EngagementLevel:   level,
			Confidence:        clamp(correlationAvg*80-float64(i)*2, 20, 100),
		})
	}

	lowShare := float64(lowDays) / float64(days)
	riskLevel := "low"
	if lowShare > engagementRiskHighShare {
		riskLevel = "high"
	} else if lowShare > engagementRiskMediumShare {
		riskLevel = "medium"
	}

	interventions := engagementInterventions(lowDayNames, dayAverages, daySessionSums)

	var confidenceSum float64
	for _, d := range forecastDays {
		confidenceSum += d.Confidence
	}
	confidence := 0.0
	if len(forecastDays) > 0 {
		confidence = confidenceSum / float64(len(forecastDays))
	}

	return &model.EngagementForecast{
		Days:          forecastDays,
		RiskLevel:     riskLevel,
		Interventions: interventions,
		Method:        "weekly_seasonal_regression",
		Confidence:    confidence,
	}
}

func engagementInterventions(lowDayNames []string, dayAverages map[time.Weekday]float64, daySessionSums map[time.Weekday][]float64) []string {
	var interventions []string
	if len(lowDayNames) > 0 {
		interventions = append(interventions,
			fmt.Sprintf("Low engagement expected on %s, schedule short review sessions", strings.Join(dedupe(lowDayNames), ", ")))
	}

	var chronic []string
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if _, ok := daySessionSums[wd]; ok && dayAverages[wd] < chronicLowSessionAverage {
			chronic = append(chronic, wd.String())
		}
	}
	if len(chronic) > 0 {
		interventions = append(interventions,
			fmt.Sprintf("You rarely study on %s, a fixed reminder could help", strings.Join(chronic, ", ")))
	}
	return interventions
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ForecastUserEngagement 取用户最近 30 条周期记录做参与度预测
func (s *PredictionService) ForecastUserEngagement(ctx context.Context, userID uint, days int) (*model.EngagementForecast, error) {
	records, err := s.History.FetchPeriodicAnalytics(ctx, userID, 30, true)
	if err != nil {
		return nil, err
	}
	// 取回为倒序，预测按时间升序进行
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return s.ForecastEngagement(records, days), nil
}

// PredictCompletionLikelihood 六指标加权后过 logistic 得到完成概率
func (s *PredictionService) PredictCompletionLikelihood(m model.UserMetrics) *model.CompletionPrediction {
	normalized := map[string]float64{
		"completionRate":   clamp(m.CompletionRate/100, 0, 1),
		"averageScore":     clamp(m.AverageScore/100, 0, 1),
		"engagementScore":  clamp(m.EngagementScore/100, 0, 1),
		"learningVelocity": clamp(m.LearningVelocity/3, 0, 1),
		"timeSpent":        clamp(m.TimeSpent/60, 0, 1),
		"consistencyScore": clamp(m.ConsistencyScore/100, 0, 1),
	}

	var weightedSum float64
	strongCount := 0
	factors := make([]model.PredictionFactor, 0, len(likelihoodWeights))
	for _, w := range likelihoodWeights {
		value := normalized[w.name]
		weightedSum += w.weight * value
		if value > likelihoodStrongValue {
			strongCount++
		}

		impact := "weak"
		if value > likelihoodStrongValue {
			impact = "strong"
		} else if value > likelihoodWeakValue {
			impact = "moderate"
		}
		factors = append(factors, model.PredictionFactor{
			Factor: w.name,
			Value:  value,
			Impact: impact,
		})
	}

	probability := 100 / (1 + math.Exp(-likelihoodSteepness*(weightedSum-0.5)))
	confidence := float64(strongCount) / float64(len(likelihoodWeights)) * 100

	// 按 权重×取值 排序取前三
	sort.SliceStable(factors, func(i, j int) bool {
		return factorRank(factors[i]) > factorRank(factors[j])
	})
	if len(factors) > 3 {
		factors = factors[:3]
	}

	return &model.CompletionPrediction{
		Probability:    probability,
		Confidence:     confidence,
		Factors:        factors,
		Recommendation: likelihoodRecommendation(probability/100, normalized),
	}
}

func factorRank(f model.PredictionFactor) float64 {
	for _, w := range likelihoodWeights {
		if w.name == f.Factor {
			return w.weight * f.Value
		}
	}
	return 0
}

func likelihoodRecommendation(probability float64, normalized map[string]float64) string {
	switch {
	case probability > 0.8:
		return "You are on track to complete your learning goals, keep up the momentum"
	case probability > 0.6:
		return "Good progress overall, staying consistent will get you there"
	case probability > 0.4:
		weakest := ""
		weakestValue := math.Inf(1)
		for _, w := range likelihoodWeights {
			if v := normalized[w.name]; v < weakestValue {
				weakest, weakestValue = w.name, v
			}
		}
		return fmt.Sprintf("Completion is at risk, focus on improving your %s", weakest)
	default:
		return "High risk of not completing, consider a lighter study plan with smaller goals"
	}
}

// categoryPreference 类别偏好统计
type categoryPreference struct {
	scoreSum    float64
	scoredCount int
	attempts    int
}

func (c categoryPreference) averageScore() float64 {
	if c.scoredCount == 0 {
		return 0
	}
	return c.scoreSum / float64(c.scoredCount)
}

// timePreference 时长偏好
type timePreference struct {
	preferred   float64
	flexibility string // low / medium / high
}

// PredictOptimalNextModule 基于历史偏好给候选模块打分，返回前 5 个
func (s *PredictionService) PredictOptimalNextModule(ctx context.Context, userID uint) (*model.NextModuleRecommendation, error) {
	history, err := s.History.FetchProgress(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	candidates, err := s.Modules.ListAvailable(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(history) == 0 || len(candidates) == 0 {
		return &model.NextModuleRecommendation{
			Recommendations: []model.ModuleRecommendation{},
			Confidence:      0,
		}, nil
	}

	// 1. 类别偏好、难度进阶、时长偏好
	prefs := make(map[string]*categoryPreference)
	currentLevel := 0
	completedCount := 0
	totalTimeSpent := 0.0
	var durations []float64
	for _, p := range history {
		if p.Module.Category != "" {
			pref, ok := prefs[p.Module.Category]
			if !ok {
				pref = &categoryPreference{}
				prefs[p.Module.Category] = pref
			}
			pref.attempts++
			if p.CompletionStatus == model.StatusCompleted && p.FinalScore != nil && *p.FinalScore > 0 {
				pref.scoreSum += *p.FinalScore
				pref.scoredCount++
			}
		}
		if p.CompletionStatus == model.StatusCompleted {
			completedCount++
			if lvl := p.Module.Difficulty.Level(); lvl > currentLevel {
				currentLevel = lvl
			}
		}
		totalTimeSpent += float64(p.TimeSpent)
		if p.Module.EstimatedDuration > 0 {
			durations = append(durations, float64(p.Module.EstimatedDuration))
		}
	}

	recommendedLevel := currentLevel + 1
	if recommendedLevel > difficultyMaxLevel {
		recommendedLevel = difficultyMaxLevel
	}
	timePref := buildTimePreference(durations)

	// 2. 逐个候选打分
	adjustment := completionAdjustment(completedCount, totalTimeSpent)
	recommendations := make([]model.ModuleRecommendation, 0, len(candidates))
	for _, m := range candidates {
		score, reasons := s.scoreModule(m, prefs, currentLevel, timePref)
		recommendations = append(recommendations, model.ModuleRecommendation{
			ModuleID:                m.ID,
			Title:                   m.Title,
			Score:                   score,
			Reasons:                 reasons,
			EstimatedCompletionTime: float64(m.EstimatedDuration) * adjustment,
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		if recommendations[i].Score != recommendations[j].Score {
			return recommendations[i].Score > recommendations[j].Score
		}
		return recommendations[i].ModuleID < recommendations[j].ModuleID
	})
	if len(recommendations) > recommendationLimit {
		recommendations = recommendations[:recommendationLimit]
	}

	return &model.NextModuleRecommendation{
		Recommendations: recommendations,
		Confidence:      math.Min(float64(len(history))*10, 95),
	}, nil
}

func buildTimePreference(durations []float64) timePreference {
	if len(durations) == 0 {
		return timePreference{preferred: defaultPreferredMinutes, flexibility: "medium"}
	}
	avg := mean(durations)
	var variance float64
	for _, d := range durations {
		variance += (d - avg) * (d - avg)
	}
	variance /= float64(len(durations))

	flexibility := "medium"
	if variance < 100 {
		flexibility = "low"
	} else if variance > 400 {
		flexibility = "high"
	}
	return timePreference{preferred: avg, flexibility: flexibility}
}

func (s *PredictionService) scoreModule(m model.LearningModule, prefs map[string]*categoryPreference, currentLevel int, timePref timePreference) (float64, []string) {
	score := 0.0
	var reasons []string

	if pref, ok := prefs[m.Category]; ok && pref.attempts > 0 {
		term := math.Min(0.5, pref.averageScore()/100*0.3+float64(pref.attempts)/10*0.2)
		score += term
		reasons = append(reasons, fmt.Sprintf("You have a solid track record in %s", m.Category))
	}

	level := m.Difficulty.Level()
	switch {
	case level == currentLevel+1:
		score += 0.3
		reasons = append(reasons, "A natural next step up in difficulty")
	case level == currentLevel:
		score += 0.2
		reasons = append(reasons, "Matches your current skill level")
	case level < currentLevel:
		score += 0.1
		reasons = append(reasons, "A lighter module, good for reinforcing basics")
	case level > currentLevel+1:
		score -= 0.2
	}

	if m.EstimatedDuration > 0 && math.Abs(float64(m.EstimatedDuration)-timePref.preferred) < timeMatchWindowMinutes {
		score += 0.2
		reasons = append(reasons, fmt.Sprintf("Fits your preferred session length of about %.0f minutes", timePref.preferred))
	}

	return clamp(score, 0, 1), reasons
}

// completionAdjustment 按历史完成速度调整预计耗时
func completionAdjustment(completedCount int, totalTimeSpent float64) float64 {
	if totalTimeSpent <= 0 {
		return 1
	}
	velocity := float64(completedCount) / totalTimeSpent * 30
	if velocity > fastVelocityThreshold {
		return 0.8
	}
	if velocity < slowVelocityThreshold {
		return 1.5
	}
	return 1
}
