package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// DashScope的OpenAI兼容端点
	openAICompatibleQwenAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultQwenModelName       = "qwen-plus"
)

// QwenChatModel 通过OpenAI兼容API与通义千问交互。
// 字段抽取只需要Generate，不绑定工具，Stream未实现。
type QwenChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// QwenOption 配置选项函数
type QwenOption func(*QwenChatModel)

// WithTemperature 配置采样温度，抽取任务应接近0
func WithTemperature(t float64) QwenOption {
	return func(q *QwenChatModel) {
		q.temperature = t
	}
}

// WithMaxTokens 配置单次补全的最大token数
func WithMaxTokens(n int) QwenOption {
	return func(q *QwenChatModel) {
		q.maxTokens = n
	}
}

// WithHTTPTimeout 配置HTTP客户端超时
func WithHTTPTimeout(d time.Duration) QwenOption {
	return func(q *QwenChatModel) {
		q.httpClient.Timeout = d
	}
}

// NewQwenChatModel 创建通义千问聊天模型客户端
func NewQwenChatModel(apiKey, modelName, apiURL string, options ...QwenOption) (*QwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultQwenModelName
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = openAICompatibleQwenAPIURL
	}

	q := &QwenChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{},
	}
	for _, opt := range options {
		opt(q)
	}
	return q, nil
}

type chatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Temperature *float64          `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type chatCompletionMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type chatCompletionChoice struct {
	Index        int                   `json:"index"`
	Message      chatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

type chatCompletionResponse struct {
	Id      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
}

// Generate 实现 model.ChatModel 接口
func (q *QwenChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt
	}

	reqPayload := chatCompletionRequest{
		Model:    q.modelName,
		Messages: messages,
	}
	if q.temperature > 0 {
		reqPayload.Temperature = &q.temperature
	}
	if q.maxTokens > 0 {
		reqPayload.MaxTokens = q.maxTokens
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+q.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := q.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	apiMessage := resp.Choices[0].Message
	content := ""
	if apiMessage.Content != nil {
		content = *apiMessage.Content
	}

	role := schema.RoleType(apiMessage.Role)
	if role == "" {
		role = schema.RoleType("assistant")
	}
	return &schema.Message{
		Role:    role,
		Content: content,
	}, nil
}

// Stream 实现 model.ChatModel 接口。字段抽取按整段JSON消费，不走流式。
func (q *QwenChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("QwenChatModel 的 Stream 方法未实现")
}

// WithTools 实现 model.ToolCallingChatModel 接口。
// 抽取流程不使用工具调用，直接返回自身。
func (q *QwenChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		return nil, fmt.Errorf("QwenChatModel 不支持工具绑定")
	}
	return q, nil
}

var _ model.BaseChatModel = (*QwenChatModel)(nil)
var _ model.ToolCallingChatModel = (*QwenChatModel)(nil)
