package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelcv-ai-go/internal/logger"
	"reelcv-ai-go/internal/ratelimit"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultChatCompletionsURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultModelName          = "qwen-plus"
)

// ChatClient 实现 model.ChatModel 接口，通过OpenAI兼容的
// chat/completions API调用大模型。每个实例携带自己的采样参数，
// 不同分析阶段使用不同temperature/max_tokens的独立实例。
type ChatClient struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	limiter     *ratelimit.TokenBucket // 可选，nil时不限流
}

// ChatClientOption 聊天客户端的配置选项
type ChatClientOption func(*ChatClient)

// WithSamplingParams 设置采样温度与最大生成token数
func WithSamplingParams(temperature float64, maxTokens int) ChatClientOption {
	return func(c *ChatClient) {
		c.temperature = temperature
		c.maxTokens = maxTokens
	}
}

// WithRateLimiter 设置QPM限流器
func WithRateLimiter(limiter *ratelimit.TokenBucket) ChatClientOption {
	return func(c *ChatClient) {
		c.limiter = limiter
	}
}

// WithHTTPTimeout 设置底层HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) ChatClientOption {
	return func(c *ChatClient) {
		c.httpClient.Timeout = timeout
	}
}

// NewChatClient 创建一个新的 ChatClient 实例
func NewChatClient(apiKey, modelName, apiURL string, options ...ChatClientOption) (*ChatClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultModelName
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = defaultChatCompletionsURL
	}

	c := &ChatClient{
		apiKey:     apiKey,
		modelName:  mn,
		apiURL:     url,
		httpClient: &http.Client{},
	}

	for _, opt := range options {
		opt(c)
	}

	logger.Debug().Str("api_url", url).Str("model", mn).Msg("LLM客户端初始化完成")
	return c, nil
}

// --- OpenAI兼容的请求/响应结构 ---

type chatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"` // schema.Message的role/content与OpenAI格式兼容
	Temperature float64           `json:"temperature,omitempty"`
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
func (c *ChatClient) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt // 通用选项暂不处理，采样参数由实例自身携带
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("等待限流令牌失败: %w", err)
		}
	}

	reqPayload := chatCompletionRequest{
		Model:       c.modelName,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	logger.Debug().Str("model", c.modelName).Int("messages", len(messages)).Msg("发送模型请求")

	httpResp, err := c.httpClient.Do(httpReq)
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

	var apiResp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, string(bodyBytes))
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	apiMessage := apiResp.Choices[0].Message
	responseContent := ""
	if apiMessage.Content != nil {
		responseContent = *apiMessage.Content
	}

	resultMessage := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: responseContent,
	}
	if resultMessage.Role == "" {
		resultMessage.Role = schema.RoleType("assistant")
	}

	return resultMessage, nil
}

// Stream 实现 model.ChatModel 接口。分析阶段均为单轮JSON输出，不需要流式响应。
func (c *ChatClient) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("ChatClient 的 Stream 方法未实现")
}

// BindTools 实现 model.ChatModel 接口。分析流水线不使用工具调用。
func (c *ChatClient) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		logger.Warn().Int("tools", len(tools)).Msg("ChatClient 不支持工具调用，忽略BindTools")
	}
	return nil
}

var _ model.ChatModel = (*ChatClient)(nil)
