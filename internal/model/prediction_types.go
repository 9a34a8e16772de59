package model

// TimeSeriesPoint 时间序列输入点，取值链 AverageScore → CompletionRate → Value → 0
type TimeSeriesPoint struct {
	AverageScore   *float64 `json:"averageScore,omitempty"`
	CompletionRate *float64 `json:"completionRate,omitempty"`
	Value          *float64 `json:"value,omitempty"`
}

// ScalarValue 按取值链解析点的数值
func (p TimeSeriesPoint) ScalarValue() float64 {
	if p.AverageScore != nil {
		return *p.AverageScore
	}
	if p.CompletionRate != nil {
		return *p.CompletionRate
	}
	if p.Value != nil {
		return *p.Value
	}
	return 0
}

// ForecastPoint 单期预测值及上下界
type ForecastPoint struct {
	Period         int     `json:"period"`
	PredictedValue float64 `json:"predictedValue"`
	UpperBound     float64 `json:"upperBound"`
	LowerBound     float64 `json:"lowerBound"`
	Confidence     float64 `json:"confidence"` // 0-100
}

// TimeSeriesForecast 时间序列预测结果
type TimeSeriesForecast struct {
	Forecast   []ForecastPoint `json:"forecast"`
	Trend      string          `json:"trend"`  // improving / declining / stable
	Method     string          `json:"method"` // linear_regression / insufficient_data
	Confidence float64         `json:"confidence"`
}

// EngagementForecastDay 单日参与度预测
type EngagementForecastDay struct {
	Day               int     `json:"day"` // 1 起算的未来天数
	DayOfWeek         string  `json:"dayOfWeek"`
	PredictedSessions float64 `json:"predictedSessions"`
	PredictedFocus    float64 `json:"predictedFocus"`
	EngagementLevel   string  `json:"engagementLevel"` // high / medium / low
	Confidence        float64 `json:"confidence"`
}

// EngagementForecast 参与度预测结果
type EngagementForecast struct {
	Days          []EngagementForecastDay `json:"days"`
	RiskLevel     string                  `json:"riskLevel"` // high / medium / low
	Interventions []string                `json:"interventions,omitempty"`
	Method        string                  `json:"method"`
	Confidence    float64                 `json:"confidence"`
}

// UserMetrics 完成可能性评分的输入指标
type UserMetrics struct {
	CompletionRate   float64 `json:"completionRate"`   // 0-100
	AverageScore     float64 `json:"averageScore"`     // 0-100
	EngagementScore  float64 `json:"engagementScore"`  // 0-100
	LearningVelocity float64 `json:"learningVelocity"` // 模块/周
	TimeSpent        float64 `json:"timeSpent"`        // 分钟/天
	ConsistencyScore float64 `json:"consistencyScore"` // 0-100
}

// PredictionFactor 影响完成可能性的因素
type PredictionFactor struct {
	Factor string  `json:"factor"`
	Value  float64 `json:"value"`  // 归一化后的输入值 0-1
	Impact string  `json:"impact"` // strong / moderate / weak
}

// CompletionPrediction 完成可能性预测
type CompletionPrediction struct {
	Probability    float64            `json:"probability"` // 0-100
	Confidence     float64            `json:"confidence"`  // 0-100
	Factors        []PredictionFactor `json:"factors"`
	Recommendation string             `json:"recommendation"`
}

// ModuleRecommendation 单个模块推荐
type ModuleRecommendation struct {
	ModuleID                uint     `json:"moduleId"`
	Title                   string   `json:"title"`
	Score                   float64  `json:"score"` // 0-1
	Reasons                 []string `json:"reasons"`
	EstimatedCompletionTime float64  `json:"estimatedCompletionTime"` // 分钟
}

// NextModuleRecommendation 下一模块推荐结果
type NextModuleRecommendation struct {
	Recommendations []ModuleRecommendation `json:"recommendations"`
	Confidence      float64                `json:"confidence"`
}
