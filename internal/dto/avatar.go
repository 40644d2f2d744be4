package dto

// AvatarResponse 头像状态
type AvatarResponse struct {
	AvatarURL        string `json:"avatar_url"`
	ModerationStatus string `json:"moderation_status"`
	UploadedAt       string `json:"uploaded_at"`
}

// AvatarModerationRequest 头像审核
type AvatarModerationRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}
