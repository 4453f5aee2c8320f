package ctxutil

import "context"

type userIDKeyType struct{}

var userIDKey = userIDKeyType{}

// WithUserID 将 userID 注入到 context 中，由认证中间件调用
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID 从 context 中解析 userID
// 未开启鉴权时返回 "", false，调用方按匿名用户处理
func GetUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// UserIDOrEmpty 匿名时返回空字符串
func UserIDOrEmpty(ctx context.Context) string {
	id, _ := GetUserID(ctx)
	return id
}
