package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"cv-ingest-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// LLMFieldExtractor 使用LLM从简历全文中抽取结构化字段。
// LLM的输出经常是被截断或包着markdown围栏的JSON，
// 因此抽取结果总是先经过修复器再进入归一化。
type LLMFieldExtractor struct {
	llmModel model.ToolCallingChatModel
	repairer ExtractionRepairer

	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration

	logger *log.Logger
}

// LLMExtractorOption 配置选项函数
type LLMExtractorOption func(*LLMFieldExtractor)

// WithMaxRetries 配置LLM调用的最大重试次数
func WithMaxRetries(n int) LLMExtractorOption {
	return func(e *LLMFieldExtractor) {
		e.maxRetries = n
	}
}

// WithRetryDelay 配置首次重试的等待时间（后续指数退避）
func WithRetryDelay(d time.Duration) LLMExtractorOption {
	return func(e *LLMFieldExtractor) {
		e.retryDelay = d
	}
}

// WithExtractionTimeout 配置单次LLM调用的超时
func WithExtractionTimeout(d time.Duration) LLMExtractorOption {
	return func(e *LLMFieldExtractor) {
		e.timeout = d
	}
}

// WithExtractorLogger 配置自定义日志记录器
func WithExtractorLogger(logger *log.Logger) LLMExtractorOption {
	return func(e *LLMFieldExtractor) {
		e.logger = logger
	}
}

// NewLLMFieldExtractor 创建LLM字段抽取器
func NewLLMFieldExtractor(llmModel model.ToolCallingChatModel, repairer ExtractionRepairer, options ...LLMExtractorOption) *LLMFieldExtractor {
	e := &LLMFieldExtractor{
		llmModel:   llmModel,
		repairer:   repairer,
		maxRetries: 2,
		retryDelay: 2 * time.Second,
		timeout:    60 * time.Second,
		logger:     log.New(io.Discard, "", 0),
	}
	if e.repairer == nil {
		e.repairer = NewBraceRepairer()
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

// extractionSystemPrompt 字段抽取的系统提示词。
// 字段清单与下游CandidateRecord的列一一对应，新增字段需两边同步。
const extractionSystemPrompt = `You are a resume parsing assistant. Extract the following fields from the resume text and respond with a single JSON object only, no markdown fences and no commentary.

Fields:
- "first_name": string
- "last_name": string
- "email": string
- "phone_number": string, keep original formatting
- "location": string, the candidate's location as written in the resume
- "date_of_birth": string in YYYY-MM-DD format, or "" if absent
- "current_employer": string
- "years_of_experience": integer, total years of professional experience, or null
- "total_experience_months": integer, or null
- "availability": string
- "preferred_contract_type": string
- "preferred_work_arrangement": string
- "linkedin_profile": string, URL
- "website_portfolio": string, URL
- "expertise_areas": array of strings, broad areas of expertise
- "expertise_details": object mapping each expertise area to {"work_experience": string, "projects": string, "other_related_info": string}
- "sectors": array of strings, industry sectors
- "skill_keywords": array of strings
- "languages_spoken": array of {"language": string, "proficiency": string, "mother_tongue": boolean}
- "professional_certifications": array of strings
- "professional_associations": array of strings
- "publications": array of strings
- "references": string
- "notes": string

Use "" for missing string fields, [] for missing arrays, and null for missing numbers. Do not invent information that is not in the resume.`

// Extract 抽取简历字段，返回修复后的原始抽取结果。
// LLM调用失败（重试后）返回错误；输出无法修复为JSON时返回UNPARSEABLE状态而非错误。
func (e *LLMFieldExtractor) Extract(ctx context.Context, resumeText string) (*types.RawExtraction, error) {
	if strings.TrimSpace(resumeText) == "" {
		return &types.RawExtraction{
			RawText: "",
			State:   types.ExtractionUnparseable,
		}, nil
	}

	response, err := e.callLLM(ctx, extractionSystemPrompt, resumeText)
	if err != nil {
		return nil, fmt.Errorf("简历字段抽取失败: %w", err)
	}

	// 修复失败不是传输错误：UNPARSEABLE状态随结果返回，
	// 由调用方落一条failed记录而不是重新入队
	raw, repairErr := e.repairer.Repair(response)
	if raw == nil {
		return nil, repairErr
	}
	return raw, nil
}

// callLLM 调用LLM处理提示词，带指数退避重试
func (e *LLMFieldExtractor) callLLM(ctx context.Context, systemContent string, userContent string) (string, error) {
	messages := []*einoschema.Message{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	}

	retryDelay := e.retryDelay

	var response *einoschema.Message
	var err error

	for retry := 0; retry <= e.maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(retryDelay):
				retryDelay *= 2
				e.logger.Printf("重试LLM调用 (第%d次)", retry)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		response, err = e.llmModel.Generate(callCtx, messages)
		cancel()

		if err == nil {
			break
		}

		if !isRetryableError(err) || retry >= e.maxRetries {
			e.logger.Printf("[LLMFieldExtractor] LLM call final error after retries: %v", err)
			return "", fmt.Errorf("LLM Generate failed: %w", err)
		}
	}

	return response.Content, nil
}

// isRetryableError 判断错误是否应该重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host")
}
