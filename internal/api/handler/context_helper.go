package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"moh-portal/internal/api/middleware"
	"moh-portal/internal/service"
	"moh-portal/pkg/response"
	"moh-portal/pkg/session"
)

// Identity 处理器侧的身份解析；不假设网关已经执行
type Identity struct {
	codec        *session.Codec
	trustHeaders bool
	now          func() time.Time
}

// NewIdentity 创建身份解析器
func NewIdentity(codec *session.Codec, trustHeaders bool) *Identity {
	return &Identity{codec: codec, trustHeaders: trustHeaders, now: time.Now}
}

// MustGetCaller 解析当前调用方。
// 顺序：网关写入的上下文 → 自行校验 Bearer 令牌 → 可信模式下的 x-user-* 头。
// 失败时已写入响应，调用方应在 ok=false 时直接 return。
func (i *Identity) MustGetCaller(c *gin.Context) (service.Caller, bool) {
	if id, ok := fromContext(c); ok {
		return withClient(c, id), true
	}

	if token := middleware.BearerToken(c); token != "" {
		id, err := i.codec.Decode(token, i.now())
		if err != nil {
			switch {
			case errors.Is(err, session.ErrNoSecret):
				response.InternalError(c)
			case errors.Is(err, session.ErrTokenExpired):
				response.Unauthorized(c, "Сессия истекла, войдите снова")
			default:
				response.Unauthorized(c, "Недействительный токен")
			}
			return service.Caller{}, false
		}
		return withClient(c, *id), true
	}

	if i.trustHeaders {
		if id, ok := fromHeaders(c); ok {
			return withClient(c, id), true
		}
	}

	response.Unauthorized(c, "Требуется авторизация")
	return service.Caller{}, false
}

func fromContext(c *gin.Context) (session.Identity, bool) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		return session.Identity{}, false
	}
	return session.Identity{
		ID:       userID,
		Username: c.GetString(middleware.CtxUsername),
		Role:     c.GetString(middleware.CtxRole),
		GameNick: c.GetString(middleware.CtxGameNick),
		City:     c.GetString(middleware.CtxCity),
	}, true
}

func fromHeaders(c *gin.Context) (session.Identity, bool) {
	userID := c.GetHeader(middleware.HeaderUserID)
	if userID == "" {
		return session.Identity{}, false
	}
	return session.Identity{
		ID:       userID,
		Username: c.GetHeader(middleware.HeaderUsername),
		Role:     c.GetHeader(middleware.HeaderRole),
		GameNick: c.GetHeader(middleware.HeaderGameNick),
		City:     c.GetHeader(middleware.HeaderCity),
	}, true
}

func withClient(c *gin.Context, id session.Identity) service.Caller {
	caller := clientOf(c)
	caller.Identity = id
	return caller
}

// clientOf 匿名请求只携带来源信息
func clientOf(c *gin.Context) service.Caller {
	return service.Caller{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// badRequestBody 请求体解析失败。
// 超出大小上限时只登记错误，由 BodyLimit 中间件统一写 413。
func badRequestBody(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		_ = c.Error(err)
		return
	}
	response.BadRequest(c, "Некорректные параметры запроса")
}

// sendAttachment 以附件形式下发文件
func sendAttachment(c *gin.Context, data []byte, filename, contentType string) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, contentType, data)
}

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)
