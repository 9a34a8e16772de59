package service

import "math"

// regressionResult 最小二乘拟合结果
type regressionResult struct {
	Slope         float64
	Intercept     float64
	Correlation   float64
	StandardError float64
}

// predict 按拟合直线求 x 处的预测值
func (r regressionResult) predict(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// linearRegression 普通最小二乘。x 方差为 0 时不做除法，
// 返回斜率 0、截距取 y 均值、相关系数 0。
func linearRegression(x, y []float64) regressionResult {
	n := len(x)
	if n == 0 || n != len(y) {
		return regressionResult{}
	}

	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
		sumYY += y[i] * y[i]
	}

	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return regressionResult{Intercept: sumY / nf}
	}

	slope := (nf*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / nf

	correlation := 0.0
	corrDenom := math.Sqrt(denom * (nf*sumYY - sumY*sumY))
	if corrDenom != 0 {
		correlation = (nf*sumXY - sumX*sumY) / corrDenom
	}

	// 残差标准误，自由度 n-2
	standardError := 0.0
	if n > 2 {
		var ss float64
		for i := 0; i < n; i++ {
			resid := y[i] - (slope*x[i] + intercept)
			ss += resid * resid
		}
		standardError = math.Sqrt(ss / float64(n-2))
	}

	return regressionResult{
		Slope:         slope,
		Intercept:     intercept,
		Correlation:   correlation,
		StandardError: standardError,
	}
}

// calculateConsistency 一致性 = 100 - 变异系数×100，裁剪到 [0,100]。
// 均值为 0 时变异系数无定义，按 0 一致性处理。
func calculateConsistency(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	stddev := math.Sqrt(variance)

	return clamp(100-(stddev/mean)*100, 0, 100)
}

// calculateTrend 取序列对 0 起下标回归的斜率，不足 2 个点为 0
func calculateTrend(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	x := make([]float64, len(values))
	for i := range values {
		x[i] = float64(i)
	}
	return linearRegression(x, values).Slope
}

// trendDirection 斜率在 ±0.1 以内视为平稳
func trendDirection(trend float64) string {
	if trend > 0.1 {
		return "improving"
	}
	if trend < -0.1 {
		return "declining"
	}
	return "stable"
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
