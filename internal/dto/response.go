package dto

// ── 认证模块响应 ──

// LoginResponse 登录成功响应
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// MeResponse 当前用户信息（GET /api/auth/me）
type MeResponse struct {
	User     UserResponse `json:"user"`
	Sections []string     `json:"sections"`
}

// ── 用户模块响应 ──

// UserResponse 用户信息响应（脱敏，不含密码哈希与 IP）
type UserResponse struct {
	ID                     string  `json:"id"`
	Username               string  `json:"username"`
	GameNick               string  `json:"game_nick"`
	Role                   string  `json:"role"`
	Status                 string  `json:"status"`
	City                   string  `json:"city"`
	AvatarURL              *string `json:"avatar_url,omitempty"`
	AvatarModerationStatus *string `json:"avatar_moderation_status,omitempty"`
	CreatedAt              string  `json:"created_at"`
}

// UndoResponse 撤销结果
type UndoResponse struct {
	LogID      int64  `json:"log_id"`
	ActionType string `json:"action_type"`
	TargetID   string `json:"target_id"`
	Message    string `json:"message"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 50
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
