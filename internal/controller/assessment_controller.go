package controller

import (
	"xp_engine/internal/service"
	"xp_engine/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	Service *service.FinalizationService
}

func NewAssessmentController(svc *service.FinalizationService) *AssessmentController {
	return &AssessmentController{Service: svc}
}

// @Summary 提交并结算测评
// @Description 计算经验值、写入成绩册并发送学习分析事件，每次作答只能成功结算一次
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.FinalizeOptions true "结算参数"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Failure 423 {object} util.Response
// @Router /api/assessments/finalize [post]
func (c *AssessmentController) Finalize(ctx *gin.Context) {
	var opts service.FinalizeOptions
	if err := ctx.ShouldBindJSON(&opts); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defaultUser(ctx, &opts.UserID)

	result, err := c.Service.FinalizeAssessment(ctx.Request.Context(), opts)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
