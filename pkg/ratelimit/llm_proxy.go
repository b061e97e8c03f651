package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedLLMModel 对LLM模型的调用进行限流的代理。
// 抽取流水线的并发worker共享同一个底层模型，限流器必须共享。
type RateLimitedLLMModel struct {
	original    model.ToolCallingChatModel
	rateLimiter *TokenBucket
}

// NewRateLimitedLLMModel 创建限流LLM模型代理
func NewRateLimitedLLMModel(original model.ToolCallingChatModel, qpm int) *RateLimitedLLMModel {
	return &RateLimitedLLMModel{
		original:    original,
		rateLimiter: NewTokenBucket(qpm, qpm/2),
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedLLMModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedLLMModel {
	rl.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// Generate 代理Generate方法，增加限流和重试逻辑
func (rl *RateLimitedLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message

	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = rl.original.Generate(ctx, messages, options...)
		return genErr
	})

	return response, err
}

// Stream 代理Stream方法，增加限流和重试逻辑
func (rl *RateLimitedLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]

	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, options...)
		return streamErr
	})

	return stream, err
}

// WithTools 代理WithTools方法，新模型沿用同一个限流器
func (rl *RateLimitedLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}

	return &RateLimitedLLMModel{
		original:    newModel,
		rateLimiter: rl.rateLimiter,
	}, nil
}

// NewLLMWithRateLimit 按模型名从QPM配置表创建限流代理。
// 配置表命中时取限制值的90%作为安全水位。
func NewLLMWithRateLimit(original model.ToolCallingChatModel, modelName string, qpmLimits map[string]int, customQPM int, maxRetries int, retryWaitTime time.Duration) model.ToolCallingChatModel {
	qpm := customQPM

	if qpmLimits != nil && modelName != "" {
		if modelQPM, ok := qpmLimits[modelName]; ok && modelQPM > 0 {
			qpm = int(float64(modelQPM) * 0.9)
		}
	}

	if qpm <= 0 {
		qpm = 30
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}

	limitedModel := NewRateLimitedLLMModel(original, qpm)
	limitedModel.WithRetryPolicy(retryWaitTime, maxRetries)

	return limitedModel
}
