package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reelforge/internal/pkg/ctxutil"
	httputil "reelforge/internal/pkg/http"
	"reelforge/internal/pkg/jwt"
)

// Auth JWT 认证中间件
// token 从 Authorization: Bearer 读取，websocket 连接可以用 ?token= 传递
// 验证通过后把 user_id 注入 context
func Auth(jwtUtil *jwt.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				httputil.NewErrorResponse(httputil.CodeUnauthorized, "unauthorized", err.Error()))
			return
		}

		claims, err := jwtUtil.ValidateToken(tokenString)
		if err != nil {
			code := httputil.CodeInvalidToken
			if errors.Is(err, jwt.ErrExpiredToken) {
				code = httputil.CodeExpiredToken
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				httputil.NewErrorResponse(code, "invalid or expired token"))
			return
		}

		ctx := ctxutil.WithUserID(c.Request.Context(), claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", claims.UserID)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
