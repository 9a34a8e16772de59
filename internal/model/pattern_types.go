package model

type PatternType string

const (
	PatternTypeAll        PatternType = "all"
	PatternOptimalTiming  PatternType = "optimal_timing"
	PatternEngagement     PatternType = "engagement_patterns"
	PatternVelocity       PatternType = "learning_velocity"
	PatternStruggle       PatternType = "struggle_patterns"
)

// Valid 是否为已知的检测方法名（含 all）
func (t PatternType) Valid() bool {
	switch t {
	case PatternTypeAll, PatternOptimalTiming, PatternEngagement, PatternVelocity, PatternStruggle:
		return true
	}
	return false
}

// PatternResult 单个检测方法的输出，Confidence 为 0 时仅 Message/Error 有意义
type PatternResult struct {
	Type       PatternType        `json:"type"`
	Confidence float64            `json:"confidence"` // 0-100
	Message    string             `json:"message,omitempty"`
	Error      string             `json:"error,omitempty"`
	Timing     *TimingPattern     `json:"timing,omitempty"`
	Engagement *EngagementPattern `json:"engagement,omitempty"`
	Velocity   *VelocityPattern   `json:"velocity,omitempty"`
	Struggle   *StrugglePattern   `json:"struggle,omitempty"`
}

// HourStat 小时桶统计
type HourStat struct {
	Hour              int     `json:"hour"`
	SessionCount      int     `json:"sessionCount"`
	AverageEngagement float64 `json:"averageEngagement"`
	Consistency       float64 `json:"consistency"`
}

// DayStat 星期桶统计
type DayStat struct {
	Day               string  `json:"day"`
	SessionCount      int     `json:"sessionCount"`
	AverageEngagement float64 `json:"averageEngagement"`
}

// TimingPattern 最佳学习时段
type TimingPattern struct {
	BestHour            int        `json:"bestHour"` // 0-23
	BestDay             string     `json:"bestDay"`
	IdealSessionLength  float64    `json:"idealSessionLength"` // 分钟
	HourlyStats         []HourStat `json:"hourlyStats,omitempty"`
	DailyStats          []DayStat  `json:"dailyStats,omitempty"`
	Insights            []string   `json:"insights,omitempty"`
}

// EngagementPattern 参与度趋势
type EngagementPattern struct {
	FocusTrend      float64  `json:"focusTrend"`
	SessionTrend    float64  `json:"sessionTrend"`
	Consistency     float64  `json:"consistency"`
	Patterns        []string `json:"patterns"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// VelocityPattern 学习速度
type VelocityPattern struct {
	AverageVelocity float64  `json:"averageVelocity"` // 模块/周
	Trend           float64  `json:"trend"`
	Consistency     float64  `json:"consistency"`
	Patterns        []string `json:"patterns"`
}

// StruggleArea 单个困难分组
type StruggleArea struct {
	Type           string  `json:"type"` // category_struggle / difficulty_struggle
	Name           string  `json:"name"`
	CompletionRate float64 `json:"completionRate"` // 0-1
	AverageScore   float64 `json:"averageScore"`   // 0-100
	Severity       string  `json:"severity"`       // high / medium / low
}

// StrugglePattern 困难区域汇总
type StrugglePattern struct {
	OverallLevel string         `json:"overallLevel"` // high / medium / low / none
	Struggles    []StruggleArea `json:"struggles"`
}
