package dto

// ActionLogListRequest 审计日志查询参数
type ActionLogListRequest struct {
	PaginationRequest
	UserID     string `form:"user_id"`
	ActionType string `form:"action_type" binding:"omitempty,oneof=create update delete role_change login logout deactivate restore other"`
	TargetID   string `form:"target_id"`
	Undone     *bool  `form:"undone"`
	From       string `form:"from"` // YYYY-MM-DD
	To         string `form:"to"`   // YYYY-MM-DD，含当天
}
