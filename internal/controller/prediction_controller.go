package controller

import (
	"coder_edu_analytics/internal/model"
	"coder_edu_analytics/internal/service"
	"coder_edu_analytics/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type PredictionController struct {
	PredictionService *service.PredictionService
}

func NewPredictionController(predictionService *service.PredictionService) *PredictionController {
	return &PredictionController{PredictionService: predictionService}
}

// @Summary 预测学习表现
// @Description 基于周期聚合的专注度序列做线性外推
// @Tags 预测
// @Produce json
// @Security BearerAuth
// @Param userId query int false "查询的用户，仅教师和管理员可指定他人"
// @Param periods query int false "预测期数" default(4)
// @Success 200 {object} util.Response
// @Router /api/analytics/predictions/performance [get]
func (c *PredictionController) GetPerformanceForecast(ctx *gin.Context) {
	userID, ok := resolveTargetUser(ctx)
	if !ok {
		return
	}

	periods, _ := strconv.Atoi(ctx.DefaultQuery("periods", "4"))
	if periods <= 0 || periods > 52 {
		util.BadRequest(ctx, "periods must be between 1 and 52")
		return
	}

	forecast, err := c.PredictionService.ForecastPerformance(ctx.Request.Context(), userID, periods)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, forecast)
}

type forecastRequest struct {
	Points  []model.TimeSeriesPoint `json:"points" binding:"required"`
	Periods int                     `json:"periods" binding:"required,min=1,max=52"`
}

// @Summary 时间序列预测
// @Description 对调用方提供的时间序列做线性外推
// @Tags 预测
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body forecastRequest true "序列与期数"
// @Success 200 {object} util.Response
// @Router /api/analytics/predictions/forecast [post]
func (c *PredictionController) ForecastTimeSeries(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req forecastRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Success(ctx, c.PredictionService.ForecastTimeSeries(req.Points, req.Periods))
}

// @Summary 预测参与度
// @Description 带周内季节因子的未来参与度预测
// @Tags 预测
// @Produce json
// @Security BearerAuth
// @Param userId query int false "查询的用户，仅教师和管理员可指定他人"
// @Param days query int false "预测天数" default(7)
// @Success 200 {object} util.Response
// @Router /api/analytics/predictions/engagement [get]
func (c *PredictionController) GetEngagementForecast(ctx *gin.Context) {
	userID, ok := resolveTargetUser(ctx)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(ctx.DefaultQuery("days", "7"))
	if days <= 0 || days > 30 {
		util.BadRequest(ctx, "days must be between 1 and 30")
		return
	}

	forecast, err := c.PredictionService.ForecastUserEngagement(ctx.Request.Context(), userID, days)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, forecast)
}

// @Summary 预测完成可能性
// @Description 六项指标加权评分得到完成概率与建议
// @Tags 预测
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param metrics body model.UserMetrics true "用户指标"
// @Success 200 {object} util.Response
// @Router /api/analytics/predictions/completion [post]
func (c *PredictionController) PredictCompletion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var metrics model.UserMetrics
	if err := ctx.ShouldBindJSON(&metrics); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Success(ctx, c.PredictionService.PredictCompletionLikelihood(metrics))
}

// @Summary 推荐下一个学习模块
// @Description 按类别偏好、难度进阶和时长偏好给候选模块打分，最多返回 5 个
// @Tags 预测
// @Produce json
// @Security BearerAuth
// @Param userId query int false "查询的用户，仅教师和管理员可指定他人"
// @Success 200 {object} util.Response
// @Router /api/analytics/predictions/next-module [get]
func (c *PredictionController) GetNextModule(ctx *gin.Context) {
	userID, ok := resolveTargetUser(ctx)
	if !ok {
		return
	}

	recommendation, err := c.PredictionService.PredictOptimalNextModule(ctx.Request.Context(), userID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, recommendation)
}
