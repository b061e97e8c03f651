package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"cv-ingest-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel 按调用顺序返回预设响应或错误的聊天模型桩
type scriptedModel struct {
	responses    []string
	errs         []error
	calls        int
	systemPrompt string
}

func (m *scriptedModel) Generate(ctx context.Context, messages []*einoschema.Message, options ...model.Option) (*einoschema.Message, error) {
	idx := m.calls
	m.calls++
	if len(messages) > 0 && messages[0].Role == "system" {
		m.systemPrompt = messages[0].Content
	}
	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	content := ""
	if idx < len(m.responses) {
		content = m.responses[idx]
	}
	return &einoschema.Message{Role: "assistant", Content: content}, nil
}

func (m *scriptedModel) Stream(ctx context.Context, messages []*einoschema.Message, options ...model.Option) (*einoschema.StreamReader[*einoschema.Message], error) {
	return nil, errors.New("not implemented")
}

func (m *scriptedModel) WithTools(tools []*einoschema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func TestExtractParsesModelOutput(t *testing.T) {
	mock := &scriptedModel{responses: []string{`{"first_name": "John", "last_name": "Doe"}`}}
	e := NewLLMFieldExtractor(mock, nil)

	raw, err := e.Extract(context.Background(), "John Doe\nSenior Engineer")
	require.NoError(t, err)

	assert.Equal(t, types.ExtractionParsed, raw.State)
	assert.Equal(t, "John", raw.Fields["first_name"])
	assert.Equal(t, 1, mock.calls, "成功时不应重试")
}

func TestExtractPromptDetailKeysMatchNormalizer(t *testing.T) {
	// 提示词声明的专长详情键必须与归一化端读取的键一致，
	// 否则模型按提示词输出的"其他信息"会被整体丢弃
	mock := &scriptedModel{responses: []string{
		`{"expertise_areas": ["Python"], "expertise_details": {"Python": {"work_experience": "5 years", "projects": "", "other_related_info": "AWS Certified"}}}`,
	}}
	e := NewLLMFieldExtractor(mock, nil)

	raw, err := e.Extract(context.Background(), "resume text")
	require.NoError(t, err)

	assert.Contains(t, mock.systemPrompt, `"other_related_info"`, "提示词应使用归一化端读取的详情键")
	assert.NotContains(t, mock.systemPrompt, `"other_info"`, "提示词不应声明归一化端不认识的键")

	parsed := NewFieldNormalizer(zerolog.Nop()).Normalize(raw.Fields)
	require.Contains(t, parsed.ExpertiseDetails, "Python")
	assert.Equal(t, "AWS Certified", parsed.ExpertiseDetails["Python"].OtherInfo,
		"按提示词输出的其他信息应完整到达规范化记录")
}

func TestExtractRepairsTruncatedOutput(t *testing.T) {
	mock := &scriptedModel{responses: []string{`{"first_name": "John", "notes": "incomple`}}
	e := NewLLMFieldExtractor(mock, nil)

	raw, err := e.Extract(context.Background(), "some resume text")
	require.NoError(t, err)

	assert.Equal(t, types.ExtractionRepaired, raw.State, "截断的输出应经修复后解析成功")
	assert.Equal(t, "John", raw.Fields["first_name"])
}

func TestExtractEmptyTextSkipsLLM(t *testing.T) {
	mock := &scriptedModel{}
	e := NewLLMFieldExtractor(mock, nil)

	raw, err := e.Extract(context.Background(), "   \n ")
	require.NoError(t, err)

	assert.Equal(t, types.ExtractionUnparseable, raw.State, "空文本应直接标记为不可解析")
	assert.Equal(t, 0, mock.calls, "空文本不应调用LLM")
}

func TestExtractRetriesOnTransientError(t *testing.T) {
	mock := &scriptedModel{
		errs:      []error{errors.New("connection reset by peer"), nil},
		responses: []string{"", `{"first_name": "Amy"}`},
	}
	e := NewLLMFieldExtractor(mock, nil, WithMaxRetries(2), WithRetryDelay(time.Millisecond))

	raw, err := e.Extract(context.Background(), "resume text")
	require.NoError(t, err, "暂时性错误应重试后成功")

	assert.Equal(t, 2, mock.calls)
	assert.Equal(t, "Amy", raw.Fields["first_name"])
}

func TestExtractGivesUpOnPermanentError(t *testing.T) {
	mock := &scriptedModel{errs: []error{errors.New("invalid api key")}}
	e := NewLLMFieldExtractor(mock, nil, WithMaxRetries(3), WithRetryDelay(time.Millisecond))

	_, err := e.Extract(context.Background(), "resume text")
	require.Error(t, err, "不可重试的错误应立即放弃")
	assert.Equal(t, 1, mock.calls, "认证类错误不应重试")
}

func TestExtractUnrepairableOutputIsNotAnError(t *testing.T) {
	mock := &scriptedModel{responses: []string{"I cannot extract fields from this text."}}
	e := NewLLMFieldExtractor(mock, nil)

	raw, err := e.Extract(context.Background(), "resume text")
	require.NoError(t, err, "解析质量问题不是传输错误，不应触发重新入队")
	require.NotNil(t, raw)
	assert.Equal(t, types.ExtractionUnparseable, raw.State, "无法修复的输出应以状态表达")
	assert.NotEmpty(t, raw.Err, "失败原因应保留在结果中")
}
