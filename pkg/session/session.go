package session

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"moh-portal/config"
)

var (
	ErrTokenExpired = errors.New("сессия истекла")
	ErrTokenInvalid = errors.New("недействительный токен")
	ErrNoSecret     = errors.New("ключ подписи сессии не настроен")
)

// maxClockSkew 允许的登录时间戳超前量
const maxClockSkew = 5 * time.Minute

// Identity 令牌中携带的用户身份
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	GameNick string `json:"game_nick"`
	City     string `json:"city"`
}

// payload 令牌明文结构：base64(JSON)
type payload struct {
	Identity
	LoginTimestamp int64  `json:"loginTimestamp"` // Unix 毫秒
	Signature      string `json:"signature"`
}

// Codec 会话令牌编解码器
// 仅依赖签名和过期时间失效，无吊销列表
type Codec struct {
	secret   []byte
	duration time.Duration
}

// NewCodec 创建会话令牌编解码器
func NewCodec(cfg *config.AuthConfig) *Codec {
	return &Codec{
		secret:   []byte(cfg.SessionSecret),
		duration: cfg.SessionDuration,
	}
}

// Duration 会话有效期
func (c *Codec) Duration() time.Duration { return c.duration }

// Encode 生成会话令牌
func (c *Codec) Encode(id Identity, now time.Time) (string, error) {
	sig, err := c.sign(id)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(payload{
		Identity:       id,
		LoginTimestamp: now.UnixMilli(),
		Signature:      sig,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode 校验并解析会话令牌
func (c *Codec) Decode(token string, now time.Time) (*Identity, error) {
	if len(c.secret) == 0 {
		return nil, ErrNoSecret
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, ErrTokenInvalid
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrTokenInvalid
	}
	if p.ID == "" || p.Signature == "" || p.LoginTimestamp <= 0 {
		return nil, ErrTokenInvalid
	}

	loginAt := time.UnixMilli(p.LoginTimestamp)
	if loginAt.After(now.Add(maxClockSkew)) {
		return nil, ErrTokenInvalid
	}
	if now.Sub(loginAt) > c.duration {
		return nil, ErrTokenExpired
	}

	sig, err := hex.DecodeString(p.Signature)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if err := jwtv5.SigningMethodHS256.Verify(signingString(p.Identity), sig, c.secret); err != nil {
		return nil, ErrTokenInvalid
	}

	id := p.Identity
	return &id, nil
}

// sign HMAC-SHA256(secret, "id:username:role:game_nick")，十六进制编码
func (c *Codec) sign(id Identity) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrNoSecret
	}
	sig, err := jwtv5.SigningMethodHS256.Sign(signingString(id), c.secret)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

func signingString(id Identity) string {
	return id.ID + ":" + id.Username + ":" + id.Role + ":" + id.GameNick
}
