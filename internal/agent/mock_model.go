package agent

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse 定义了 MockChatClient 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatClient 是一个用于测试的 model.ChatModel 的模拟实现
type MockChatClient struct {
	// For single, repeatable response
	ExpectedResponse string
	ExpectedError    error

	// For sequential, different responses
	SequentialResponses []MockResponse
	ResponseIndex       int
	IsSequential        bool

	ReceivedMessages []*schema.Message
	CallCount        int
}

// NewMockChatClient 创建一个返回固定响应的 MockChatClient
func NewMockChatClient(expectedResponse string, expectedError error) *MockChatClient {
	return &MockChatClient{
		ExpectedResponse: expectedResponse,
		ExpectedError:    expectedError,
		IsSequential:     false,
		ReceivedMessages: make([]*schema.Message, 0),
	}
}

// NewMockChatClientSequential 创建一个按顺序返回不同响应的 MockChatClient
func NewMockChatClientSequential(responses []MockResponse) *MockChatClient {
	if len(responses) == 0 {
		// 为了避免panic，如果responses为空，则返回一个总是报错的客户端
		return &MockChatClient{
			IsSequential:        true,
			SequentialResponses: []MockResponse{{Error: errors.New("mock client has no responses configured")}},
			ReceivedMessages:    make([]*schema.Message, 0),
		}
	}
	return &MockChatClient{
		SequentialResponses: responses,
		IsSequential:        true,
		ReceivedMessages:    make([]*schema.Message, 0),
	}
}

// Generate 实现 model.ChatModel 接口
func (m *MockChatClient) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.CallCount++
	m.ReceivedMessages = append(m.ReceivedMessages, messages...)

	if m.IsSequential {
		idx := m.ResponseIndex
		if idx >= len(m.SequentialResponses) {
			idx = len(m.SequentialResponses) - 1 // 超出后重复最后一个响应
		} else {
			m.ResponseIndex++
		}
		resp := m.SequentialResponses[idx]
		if resp.Error != nil {
			return nil, resp.Error
		}
		return &schema.Message{Role: "assistant", Content: resp.Content}, nil
	}

	if m.ExpectedError != nil {
		return nil, m.ExpectedError
	}
	return &schema.Message{Role: "assistant", Content: m.ExpectedResponse}, nil
}

// Stream 实现 model.ChatModel 接口
func (m *MockChatClient) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	// 测试中不需要流式响应
	return nil, nil
}

// BindTools 实现 model.ChatModel 接口
func (m *MockChatClient) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

var _ model.ChatModel = (*MockChatClient)(nil)
