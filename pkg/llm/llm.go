// Package llm Groq（OpenAI 兼容 chat/completions）客户端
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openai "github.com/sashabaranov/go-openai"

	"moh-portal/config"
)

var (
	ErrNoAPIKey      = errors.New("LLM API key 未配置")
	ErrEmptyResponse = errors.New("模型返回为空")
)

var llmCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moh_llm_calls_total",
		Help: "LLM 调用次数（按结果分类）",
	},
	[]string{"outcome"},
)

// Message 对话消息
type Message struct {
	Role    string
	Content string
}

// APIError 上游返回的错误
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: HTTP %d %s (%s/%s)", e.StatusCode, e.Message, e.Type, e.Code)
}

// IsClientError 请求本身无效（参数错误或模型已下线），重试无意义
func (e *APIError) IsClientError() bool {
	return e.Type == "invalid_request_error" ||
		e.Code == "model_decommissioned" ||
		strings.Contains(e.Message, "decommissioned")
}

// Client chat/completions 客户端
type Client struct {
	apiKey string
	model  string
	api    *openai.Client
}

// NewClient 创建 LLM 客户端；超时为 0 时不设置
func NewClient(cfg *config.LLMConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		api:    openai.NewClientWithConfig(oc),
	}
}

// CompleteJSON 以 JSON 模式请求补全，返回模型原始文本
func (c *Client) CompleteJSON(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.1,
		MaxTokens:   4096,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		if apiErr := asAPIError(err); apiErr != nil {
			llmCallsTotal.WithLabelValues("api_error").Inc()
			return "", apiErr
		}
		llmCallsTotal.WithLabelValues("transport_error").Inc()
		return "", fmt.Errorf("请求 LLM 失败: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		llmCallsTotal.WithLabelValues("empty").Inc()
		return "", ErrEmptyResponse
	}

	llmCallsTotal.WithLabelValues("ok").Inc()
	return resp.Choices[0].Message.Content, nil
}

// asAPIError 上游 HTTP 错误转换为 APIError；网络错误返回 nil
func asAPIError(err error) *APIError {
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		code, _ := oaErr.Code.(string)
		return &APIError{
			StatusCode: oaErr.HTTPStatusCode,
			Message:    oaErr.Message,
			Type:       oaErr.Type,
			Code:       code,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    strings.TrimSpace(string(reqErr.Body)),
		}
	}
	return nil
}
