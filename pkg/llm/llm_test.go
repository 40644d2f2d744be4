package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"moh-portal/config"
)

func newTestClient(url, key string) *Client {
	return NewClient(&config.LLMConfig{APIKey: key, BaseURL: url, Model: "test-model"})
}

func TestCompleteJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("意外路径: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("缺少 Authorization 头")
		}
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
			t.Errorf("期望 json_object 模式")
		}
		if req.Model != "test-model" || len(req.Messages) != 1 || req.Messages[0].Content != "hi" {
			t.Errorf("请求体不符: %+v", req)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"valid\":true}"}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL, "k").CompleteJSON(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("CompleteJSON 失败: %v", err)
	}
	if out != `{"valid":true}` {
		t.Errorf("意外内容: %s", out)
	}
}

func TestCompleteJSON_NoKey(t *testing.T) {
	_, err := newTestClient("http://unused", "").CompleteJSON(context.Background(), nil)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("期望 ErrNoAPIKey，实际: %v", err)
	}
}

func TestCompleteJSON_Decommissioned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"The model has been decommissioned","type":"invalid_request_error","code":"model_decommissioned"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").CompleteJSON(context.Background(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("期望 APIError，实际: %v", err)
	}
	if !apiErr.IsClientError() {
		t.Error("下线模型应判定为客户端错误")
	}
}

func TestCompleteJSON_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").CompleteJSON(context.Background(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("期望 APIError，实际: %v", err)
	}
	if apiErr.IsClientError() {
		t.Error("503 不应判定为客户端错误")
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("状态码应为 503，实际 %d", apiErr.StatusCode)
	}
	if apiErr.Message != "upstream down" {
		t.Errorf("意外错误信息: %s", apiErr.Message)
	}
}

func TestCompleteJSON_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").CompleteJSON(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("期望 ErrEmptyResponse，实际: %v", err)
	}
}
