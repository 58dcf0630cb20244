package server

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

type userContextKey struct{}

// withUser attaches the verified session user to the context.
func withUser(ctx context.Context, user *domain.UserInfo) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// userFromContext retrieves the verified session user.
func userFromContext(ctx context.Context) (*domain.UserInfo, bool) {
	user, ok := ctx.Value(userContextKey{}).(*domain.UserInfo)
	return user, ok && user.HasIdentity()
}
