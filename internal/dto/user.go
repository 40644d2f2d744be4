package dto

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=active inactive request"`
	Role   string `form:"role"`
	City   string `form:"city"`
	Search string `form:"search" binding:"omitempty,max=50"`
}

// CreateUserRequest 管理员直接创建账号（状态为 active）
type CreateUserRequest struct {
	Username string `json:"username"`
	GameNick string `json:"game_nick"`
	Password string `json:"password"`
	Role     string `json:"role"`
	City     string `json:"city"`
}

// UpdateUserRequest 修改用户名 / 游戏昵称 / 密码；nil 表示不修改
type UpdateUserRequest struct {
	ID       string  `json:"id"       binding:"required"`
	Username *string `json:"username"`
	GameNick *string `json:"game_nick"`
	Password *string `json:"password"`
}

// PatchUserRequest 角色 / 城市 / 审批 / 恢复
type PatchUserRequest struct {
	ID     string `json:"id"     binding:"required"`
	Action string `json:"action" binding:"required,oneof=change_role change_city approve restore"`
	Role   string `json:"role"`
	City   string `json:"city"`
}

// DeleteUserQuery DELETE /api/users?id=&permanent=
type DeleteUserQuery struct {
	ID        string `form:"id"        binding:"required"`
	Permanent bool   `form:"permanent"`
}

// UndoRequest 撤销请求
type UndoRequest struct {
	LogID int64 `json:"logId" binding:"required,min=1"`
}
