package controller

import (
	"xp_engine/internal/service"
	"xp_engine/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Service *service.AttemptService
}

func NewAttemptController(svc *service.AttemptService) *AttemptController {
	return &AttemptController{Service: svc}
}

// @Summary 开始作答
// @Tags 作答
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.StartAttemptRequest true "作答信息"
// @Success 201 {object} util.Response
// @Router /api/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	var req service.StartAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defaultUser(ctx, &req.UserID)

	state, err := c.Service.StartAttempt(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, state)
}

// @Summary 提交答案
// @Tags 作答
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.AnswerRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/attempts/answer [post]
func (c *AttemptController) Answer(ctx *gin.Context) {
	var req service.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defaultUser(ctx, &req.UserID)

	state, err := c.Service.RecordAnswer(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// @Summary 举报题目
// @Tags 作答
// @Router /api/attempts/report [post]
func (c *AttemptController) Report(ctx *gin.Context) {
	var req service.ReportQuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defaultUser(ctx, &req.UserID)

	state, err := c.Service.ReportQuestion(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// @Summary 获取作答状态
// @Tags 作答
// @Param resourceId query string true "测评ID"
// @Param sessionId query string true "会话ID"
// @Router /api/attempts [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	ref := service.AttemptRef{
		UserID:     ctx.Query("userId"),
		ResourceID: ctx.Query("resourceId"),
		SessionID:  ctx.Query("sessionId"),
	}
	defaultUser(ctx, &ref.UserID)

	state, err := c.Service.GetAttempt(ctx.Request.Context(), ref)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}
