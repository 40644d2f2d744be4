package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"moh-portal/internal/authz"
	"moh-portal/pkg/response"
	"moh-portal/pkg/session"
)

// 网关写入 gin 上下文的身份键
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxUsername = "username"
	CtxGameNick = "game_nick"
	CtxCity     = "city"
)

// 转发给处理器的身份头
const (
	HeaderUserID   = "X-User-Id"
	HeaderRole     = "X-User-Role"
	HeaderUsername = "X-User-Username"
	HeaderGameNick = "X-User-Game-Nick"
	HeaderCity     = "X-User-City"
)

var identityHeaders = []string{HeaderUserID, HeaderRole, HeaderUsername, HeaderGameNick, HeaderCity}

// BearerToken 提取 Authorization: Bearer <token>，格式不符返回空串
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// EdgeGate 边缘网关
// 非可信模式下先剥离客户端伪造的 x-user-* 头；
// 受保护前缀（/api/users、/api/action-logs）要求有效令牌与粗粒度角色，通过后注入身份。
// 处理器不依赖本中间件，仍会独立校验。
func EdgeGate(codec *session.Codec, trustHeaders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !trustHeaders {
			for _, h := range identityHeaders {
				c.Request.Header.Del(h)
			}
		}

		path := c.Request.URL.Path
		if !authz.IsGatedPath(path) {
			c.Next()
			return
		}

		// 可信代理已完成校验
		if trustHeaders && c.GetHeader(HeaderUserID) != "" {
			if !authz.CanAccessPrefix(c.GetHeader(HeaderRole), path) {
				response.Forbidden(c, "Недостаточно прав")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		token := BearerToken(c)
		if token == "" {
			response.Unauthorized(c, "Требуется авторизация")
			c.Abort()
			return
		}

		id, err := codec.Decode(token, time.Now())
		if err != nil {
			switch {
			case errors.Is(err, session.ErrNoSecret):
				response.InternalError(c)
			case errors.Is(err, session.ErrTokenExpired):
				response.Unauthorized(c, "Сессия истекла, войдите снова")
			default:
				response.Unauthorized(c, "Недействительный токен")
			}
			c.Abort()
			return
		}

		if !authz.CanAccessPrefix(id.Role, path) {
			response.Forbidden(c, "Недостаточно прав")
			c.Abort()
			return
		}

		SetIdentity(c, id)
		c.Next()
	}
}

// SetIdentity 将身份写入 gin 上下文，并以 x-user-* 头转发
func SetIdentity(c *gin.Context, id *session.Identity) {
	c.Set(CtxUserID, id.ID)
	c.Set(CtxRole, id.Role)
	c.Set(CtxUsername, id.Username)
	c.Set(CtxGameNick, id.GameNick)
	c.Set(CtxCity, id.City)

	c.Request.Header.Set(HeaderUserID, id.ID)
	c.Request.Header.Set(HeaderRole, id.Role)
	c.Request.Header.Set(HeaderUsername, id.Username)
	c.Request.Header.Set(HeaderGameNick, id.GameNick)
	c.Request.Header.Set(HeaderCity, id.City)
}
