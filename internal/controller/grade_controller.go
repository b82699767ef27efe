package controller

import (
	"xp_engine/internal/service"
	"xp_engine/internal/util"

	"github.com/gin-gonic/gin"
)

// GradeController exposes the caller's gradebook, streak and proficiency.
type GradeController struct {
	Gradebook   *service.GradebookService
	Streaks     *service.StreakService
	Proficiency *service.ProficiencyService
}

func NewGradeController(gradebook *service.GradebookService, streaks *service.StreakService, proficiency *service.ProficiencyService) *GradeController {
	return &GradeController{Gradebook: gradebook, Streaks: streaks, Proficiency: proficiency}
}

// @Summary 成绩册列表
// @Tags 成绩
// @Param courseId query string true "课程ID"
// @Router /api/gradebook [get]
func (c *GradeController) ListResults(ctx *gin.Context) {
	results, err := c.Gradebook.ListResults(ctx.Request.Context(), callerID(ctx), ctx.Query("courseId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// @Summary 成绩详情
// @Tags 成绩
// @Param id path string true "成绩ID"
// @Router /api/gradebook/{id} [get]
func (c *GradeController) GetResult(ctx *gin.Context) {
	result, err := c.Gradebook.GetResult(ctx.Request.Context(), callerID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 连续学习天数
// @Tags 成绩
// @Router /api/streak [get]
func (c *GradeController) GetStreak(ctx *gin.Context) {
	streak, err := c.Streaks.Get(ctx.Request.Context(), callerID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, streak)
}

// @Summary 课程掌握情况
// @Tags 成绩
// @Param courseId query string true "课程ID"
// @Router /api/proficiency [get]
func (c *GradeController) ListProficiency(ctx *gin.Context) {
	courseID := ctx.Query("courseId")
	if courseID == "" {
		util.BadRequest(ctx, "courseId is required")
		return
	}
	list, err := c.Proficiency.ListByCourse(ctx.Request.Context(), callerID(ctx), courseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}
