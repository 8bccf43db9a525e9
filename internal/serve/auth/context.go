package auth

import (
	"context"
	"errors"
)

var (
	ErrUserNotFoundInContext  = errors.New("user not found in context")
	ErrTokenNotFoundInContext = errors.New("token not found in context")
)

type (
	userContextKey  struct{}
	tokenContextKey struct{}
)

// SetUserInContext stores the authenticated user in the context.
func SetUserInContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the authenticated user from the context.
func UserFromContext(ctx context.Context) (*User, error) {
	user, ok := ctx.Value(userContextKey{}).(*User)
	if !ok || user == nil {
		return nil, ErrUserNotFoundInContext
	}
	return user, nil
}

// SetTokenInContext stores the raw bearer token in the context.
func SetTokenInContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext retrieves the raw bearer token from the context.
func TokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || token == "" {
		return "", ErrTokenNotFoundInContext
	}
	return token, nil
}
