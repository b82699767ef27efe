package controller

import (
	"xp_engine/internal/service"
	"xp_engine/internal/util"

	"github.com/gin-gonic/gin"
)

type ContentController struct {
	Completions *service.CompletionService
}

func NewContentController(completions *service.CompletionService) *ContentController {
	return &ContentController{Completions: completions}
}

// @Summary 记录视频完成情况
// @Tags 内容
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CompletionRequest true "完成信息"
// @Success 200 {object} util.Response
// @Router /api/resources/completion [post]
func (c *ContentController) RecordCompletion(ctx *gin.Context) {
	var req service.CompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defaultUser(ctx, &req.UserID)

	completion, err := c.Completions.RecordCompletion(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, completion)
}
