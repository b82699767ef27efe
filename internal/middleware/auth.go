package middleware

import (
	"context"
	"strings"

	"xp_engine/internal/config"
	"xp_engine/internal/util"
	"xp_engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type callerKey struct{}

// WithCaller stores the authenticated user id on ctx.
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

// ContextIdentity resolves the caller placed on the request context by AuthMiddleware.
type ContextIdentity struct{}

func (ContextIdentity) CallerID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(callerKey{}).(string)
	if !ok || id == "" {
		return "", util.ErrUnauthorized
	}
	return id, nil
}

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT解析错误", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Request = c.Request.WithContext(WithCaller(c.Request.Context(), claims.UserID))
		c.Next()
	}
}
