package controller

import (
	"errors"
	"net/http"

	"xp_engine/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError maps engine errors to HTTP statuses.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrValidation):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrUnauthorized):
		util.Unauthorized(ctx)
	case errors.Is(err, util.ErrIdentityMismatch):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrResourceNotFound),
		errors.Is(err, util.ErrReadTimeNotFound):
		util.NotFound(ctx, err.Error())
	case errors.Is(err, util.ErrNotFinalizable), errors.Is(err, util.ErrAttemptFinalized):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrConcurrentFinalization):
		ctx.Header("Retry-After", "1")
		util.Error(ctx, http.StatusLocked, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// callerID is the user id of the JWT that authenticated the request.
func callerID(ctx *gin.Context) string {
	if claims := util.GetUserFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

// defaultUser fills an omitted user id with the caller's own id.
func defaultUser(ctx *gin.Context, userID *string) {
	if *userID == "" {
		*userID = callerID(ctx)
	}
}
