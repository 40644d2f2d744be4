package dto

// BiographyValidateRequest 传记校验请求
type BiographyValidateRequest struct {
	Text        string `json:"text"`
	CurrentDate string `json:"currentDate"` // YYYY-MM-DD，空则取当天
}
