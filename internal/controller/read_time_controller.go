package controller

import (
	"context"

	"xp_engine/internal/model"
	"xp_engine/internal/service"
	"xp_engine/internal/util"

	"github.com/gin-gonic/gin"
)

type ReadTimeController struct {
	Service *service.ReadTimeService
}

func NewReadTimeController(svc *service.ReadTimeService) *ReadTimeController {
	return &ReadTimeController{Service: svc}
}

// @Summary 阅读心跳
// @Tags 阅读时长
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.HeartbeatRequest true "心跳"
// @Success 200 {object} util.Response
// @Router /api/read-time/heartbeat [post]
func (c *ReadTimeController) Heartbeat(ctx *gin.Context) {
	var req service.HeartbeatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defaultUser(ctx, &req.UserID)

	state, err := c.Service.Accumulate(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// @Summary 上报阶段阅读时长
// @Tags 阅读时长
// @Router /api/read-time/finalize-partial [post]
func (c *ReadTimeController) FinalizePartial(ctx *gin.Context) {
	c.flush(ctx, c.Service.FinalizePartial)
}

// @Summary 结束阅读
// @Tags 阅读时长
// @Router /api/read-time/finalize [post]
func (c *ReadTimeController) Finalize(ctx *gin.Context) {
	c.flush(ctx, c.Service.Finalize)
}

type readTimeFlush func(context.Context, service.ReadTimeFinalizeRequest) (*model.ReadTimeState, error)

func (c *ReadTimeController) flush(ctx *gin.Context, fn readTimeFlush) {
	var req service.ReadTimeFinalizeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defaultUser(ctx, &req.UserID)

	state, err := fn(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}
