package controller

import (
	"coder_edu_analytics/internal/model"
	"coder_edu_analytics/internal/service"
	"coder_edu_analytics/internal/util"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	PatternService *service.PatternService
}

func NewAnalyticsController(patternService *service.PatternService) *AnalyticsController {
	return &AnalyticsController{PatternService: patternService}
}

// targetUserID 解析 userId 查询参数。学生只能查自己，
// 教师和管理员可以查看指定学生。
func targetUserID(ctx *gin.Context, user *util.Claims) (uint, error) {
	param := ctx.Query("userId")
	if param == "" {
		return user.UserID, nil
	}
	id, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, err
	}
	if uint(id) != user.UserID && user.Role != model.Teacher && user.Role != model.Admin {
		return 0, util.ErrPermissionDenied
	}
	return uint(id), nil
}

// resolveTargetUser 鉴权并解析目标用户，失败时已写入响应
func resolveTargetUser(ctx *gin.Context) (uint, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return 0, false
	}
	id, err := targetUserID(ctx, user)
	if err != nil {
		if err == util.ErrPermissionDenied {
			util.Error(ctx, http.StatusForbidden, err.Error())
		} else {
			util.BadRequest(ctx, "invalid userId")
		}
		return 0, false
	}
	return id, true
}

// @Summary 检测学习行为模式
// @Description 运行选定的行为模式检测方法，返回置信度达标的结果
// @Tags 分析
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId query int false "查询的用户，仅教师和管理员可指定他人"
// @Param types query string false "检测方法，逗号分隔 (optimal_timing,engagement_patterns,learning_velocity,struggle_patterns)，默认全部" default(all)
// @Param minConfidence query number false "置信度下限" default(60)
// @Param noCache query bool false "跳过缓存"
// @Success 200 {object} util.Response
// @Router /api/analytics/patterns [get]
func (c *AnalyticsController) GetPatterns(ctx *gin.Context) {
	userID, ok := resolveTargetUser(ctx)
	if !ok {
		return
	}

	opts := service.DetectOptions{}

	if typesParam := ctx.Query("types"); typesParam != "" {
		for _, t := range strings.Split(typesParam, ",") {
			pt := model.PatternType(strings.TrimSpace(t))
			if !pt.Valid() {
				util.BadRequest(ctx, util.ErrInvalidPattern.Error()+": "+string(pt))
				return
			}
			opts.PatternTypes = append(opts.PatternTypes, pt)
		}
	}
	if minConfidence, err := strconv.ParseFloat(ctx.Query("minConfidence"), 64); err == nil {
		opts.MinConfidence = minConfidence
	}
	opts.NoCache = ctx.Query("noCache") == "1" || ctx.Query("noCache") == "true"

	patterns, err := c.PatternService.DetectPatterns(ctx.Request.Context(), userID, opts)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, patterns)
}
