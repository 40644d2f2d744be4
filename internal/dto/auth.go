package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求；必填项由 service 校验以返回统一文案
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountRequest 自助申请账号
type AccountRequest struct {
	Username string `json:"username"`
	GameNick string `json:"game_nick"`
	Password string `json:"password"`
	City     string `json:"city"`
	Role     string `json:"role"` // 可空，默认 user
}
