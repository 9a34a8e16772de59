package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinearRegressionBasicFit(t *testing.T) {
	// y = 2x + 1
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{1, 3, 5, 7, 9}

	reg := linearRegression(x, y)

	assert.InDelta(t, 2.0, reg.Slope, 1e-9)
	assert.InDelta(t, 1.0, reg.Intercept, 1e-9)
	assert.InDelta(t, 1.0, reg.Correlation, 1e-9)
	assert.InDelta(t, 0.0, reg.StandardError, 1e-9)
}

func TestLinearRegressionConstantXDoesNotDivideByZero(t *testing.T) {
	x := []float64{5, 5, 5, 5}
	y := []float64{10, 20, 30, 40}

	reg := linearRegression(x, y)

	assert.Equal(t, 0.0, reg.Slope)
	assert.InDelta(t, 25.0, reg.Intercept, 1e-9)
	assert.Equal(t, 0.0, reg.Correlation)
	assert.Equal(t, 0.0, reg.StandardError)
}

func TestLinearRegressionEmptyAndMismatched(t *testing.T) {
	assert.Equal(t, regressionResult{}, linearRegression(nil, nil))
	assert.Equal(t, regressionResult{}, linearRegression([]float64{1, 2}, []float64{1}))
}

func TestLinearRegressionTwoPointsNoStandardError(t *testing.T) {
	reg := linearRegression([]float64{0, 1}, []float64{3, 7})

	assert.InDelta(t, 4.0, reg.Slope, 1e-9)
	// 自由度不足时不计算标准误
	assert.Equal(t, 0.0, reg.StandardError)
}

func TestCalculateConsistency(t *testing.T) {
	assert.Equal(t, 0.0, calculateConsistency(nil))
	assert.Equal(t, 0.0, calculateConsistency([]float64{}))

	// 零方差 → 一致性 100
	assert.Equal(t, 100.0, calculateConsistency([]float64{42, 42, 42}))

	// 均值为 0 时按 0 处理，不产生 NaN/Inf
	assert.Equal(t, 0.0, calculateConsistency([]float64{-5, 5}))
	assert.Equal(t, 0.0, calculateConsistency([]float64{0, 0, 0}))

	// 波动越大一致性越低
	steady := calculateConsistency([]float64{50, 52, 48, 51})
	volatile := calculateConsistency([]float64{10, 90, 20, 80})
	assert.Greater(t, steady, volatile)
}

func TestCalculateConsistencyClampedToRange(t *testing.T) {
	// 变异系数大于 1 时结果被裁剪到 0 而不是负数
	v := calculateConsistency([]float64{1, 100, 1, 100, 1})
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
}

func TestCalculateTrend(t *testing.T) {
	assert.Equal(t, 0.0, calculateTrend(nil))
	assert.Equal(t, 0.0, calculateTrend([]float64{7}))

	assert.InDelta(t, 2.0, calculateTrend([]float64{0, 2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, calculateTrend([]float64{9, 8, 7, 6}), 1e-9)
	assert.InDelta(t, 0.0, calculateTrend([]float64{5, 5, 5}), 1e-9)
}

func TestTrendDirection(t *testing.T) {
	assert.Equal(t, "improving", trendDirection(0.5))
	assert.Equal(t, "declining", trendDirection(-0.5))
	assert.Equal(t, "stable", trendDirection(0.05))
	assert.Equal(t, "stable", trendDirection(-0.1))
	assert.Equal(t, "stable", trendDirection(0.1))
}
