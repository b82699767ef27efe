package service

import (
	"context"
	"fmt"

	"xp_engine/internal/util"
	"xp_engine/pkg/logger"

	"go.uber.org/zap"
)

// checkIdentity rejects calls made on behalf of another user.
func checkIdentity(ctx context.Context, identity Identity, userID, op string) error {
	caller, err := identity.CallerID(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, util.ErrUnauthorized)
	}
	if caller != userID {
		logger.Security().Warn("identity mismatch",
			zap.String("event", "identity_mismatch"),
			zap.String("op", op),
			zap.String("callerId", caller),
			zap.String("userId", userID))
		return fmt.Errorf("%s: %w", op, util.ErrIdentityMismatch)
	}
	return nil
}
