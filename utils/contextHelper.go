package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/retailcheck_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUsername      = appctx.ContextKeyUsername
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyChatId        = appctx.ContextKeyChatId
	ContextKeyShopId        = appctx.ContextKeyShopId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId

	ContextKeyIsManager = appctx.ContextKeyIsManager
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUsername)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetChatIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyChatId)
}

func GetShopIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyShopId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetIsManagerFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsManager)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, ContextKeyUsername, username)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetChatIdInContext(ctx context.Context, chatId string) context.Context {
	return appctx.Set(ctx, ContextKeyChatId, chatId)
}

func SetShopIdInContext(ctx context.Context, shopId int) context.Context {
	return appctx.Set(ctx, ContextKeyShopId, shopId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetIsManagerInContext(ctx context.Context, isManager bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsManager, isManager)
}
