package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cv-ingest-go/internal/config"
	"cv-ingest-go/internal/constants"
	"cv-ingest-go/internal/dedup"
	"cv-ingest-go/internal/ingest"
	applogger "cv-ingest-go/internal/logger"
	"cv-ingest-go/internal/parser"
	"cv-ingest-go/internal/storage"
	"cv-ingest-go/internal/tracing"
	"cv-ingest-go/pkg/llm"
	"cv-ingest-go/pkg/ratelimit"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	var initConfigPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.StringVar(&initConfigPath, "init-config", "", "在指定路径生成示例配置文件后退出")
	pflag.Parse()

	if initConfigPath != "" {
		if err := config.CreateSampleConfig(initConfigPath); err != nil {
			stdlog.Fatalf("生成示例配置失败: %v", err)
		}
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		stdlog.Fatalf("加载配置失败: %v", err)
	}

	applogger.Init(applogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	log := applogger.Logger
	log.Info().Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracerProvider(ctx, &cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化追踪失败")
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("关闭追踪导出器失败")
		}
	}()

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer store.Close()
	log.Info().Msg("存储服务初始化成功")

	if store.MySQL == nil || store.MinIO == nil || store.RabbitMQ == nil {
		log.Fatal().Msg("摄入流水线需要MySQL、MinIO和RabbitMQ均可用")
	}

	// LLM聊天模型，按模型名套用QPM限流
	modelName := cfg.LLMExtractor.ModelName
	if modelName == "" {
		modelName = cfg.GetModelForTask("resume_extraction")
	}
	baseModel, err := llm.NewQwenChatModel(cfg.Aliyun.APIKey, modelName, cfg.Aliyun.APIURL,
		llm.WithTemperature(cfg.LLMExtractor.Temperature),
		llm.WithMaxTokens(cfg.LLMExtractor.MaxTokens),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化LLM聊天模型失败")
	}
	chatModel := ratelimit.NewLLMWithRateLimit(baseModel, modelName, cfg.ModelQPMLimits, 0,
		cfg.LLMExtractor.MaxRetries, time.Duration(cfg.LLMExtractor.RetryWaitSeconds)*time.Second)
	log.Info().Str("model", modelName).Msg("LLM聊天模型初始化成功")

	// Tika文本提取器
	var tikaOptions []parser.TikaOption
	switch cfg.Tika.MetadataMode {
	case "full":
		tikaOptions = append(tikaOptions, parser.WithFullMetadata(true))
	case "none":
		tikaOptions = append(tikaOptions, parser.WithMinimalMetadata(false), parser.WithFullMetadata(false))
	default:
		tikaOptions = append(tikaOptions, parser.WithMinimalMetadata(true))
	}
	if cfg.Tika.Timeout > 0 {
		tikaOptions = append(tikaOptions, parser.WithTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
	}
	if cfg.Logger.Level == "debug" {
		tikaOptions = append(tikaOptions, parser.WithTikaLogger(stdlog.New(os.Stderr, "[Tika] ", stdlog.LstdFlags)))
	}
	extractor := parser.NewTikaTextExtractor(cfg.Tika.ServerURL, tikaOptions...)
	log.Info().Str("server_url", cfg.Tika.ServerURL).Msg("Tika文本提取器初始化成功")

	// 字段抽取器
	llmOptions := []parser.LLMExtractorOption{
		parser.WithMaxRetries(cfg.LLMExtractor.MaxRetries),
		parser.WithRetryDelay(time.Duration(cfg.LLMExtractor.RetryWaitSeconds) * time.Second),
		parser.WithExtractionTimeout(config.GetDuration(cfg.LLMExtractor.ExtractionTimeout, 60*time.Second)),
	}
	if cfg.Logger.Level == "debug" {
		llmOptions = append(llmOptions, parser.WithExtractorLogger(stdlog.New(os.Stderr, "[Extractor] ", stdlog.LstdFlags)))
	}
	fieldExtractor := parser.NewLLMFieldExtractor(chatModel, nil, llmOptions...)

	normalizer := parser.NewFieldNormalizer(log)
	scorer := dedup.NewScorer(weightsFromConfig(cfg.Freshness), nil)
	resolver := dedup.NewResolver(ingest.NewSQLLookup(store.MySQL), scorer, log)

	svc := ingest.NewService(store, extractor, fieldExtractor, normalizer, resolver,
		time.Duration(cfg.Redis.PersonLockTTLSeconds)*time.Second, log)
	log.Info().Msg("摄入流水线初始化成功")

	var consumerDone []<-chan struct{}

	for i := 0; i < cfg.RabbitMQ.UploadWorkers; i++ {
		done, err := store.RabbitMQ.StartConsumer(ctx, constants.ResumeUploadQueue, cfg.RabbitMQ.PrefetchCount, func(msgCtx context.Context, body []byte) bool {
			return handleUploadMessage(msgCtx, svc, log, body)
		})
		if err != nil {
			log.Fatal().Err(err).Msg("启动上传消费者失败")
		}
		consumerDone = append(consumerDone, done)
	}
	log.Info().Int("workers", cfg.RabbitMQ.UploadWorkers).Msg("上传消费者已启动")

	for i := 0; i < cfg.RabbitMQ.ReparseWorkers; i++ {
		done, err := store.RabbitMQ.StartConsumer(ctx, constants.ReparseQueue, cfg.RabbitMQ.PrefetchCount, func(msgCtx context.Context, body []byte) bool {
			return handleReparseMessage(msgCtx, svc, log, body)
		})
		if err != nil {
			log.Fatal().Err(err).Msg("启动重新解析消费者失败")
		}
		consumerDone = append(consumerDone, done)
	}
	log.Info().Int("workers", cfg.RabbitMQ.ReparseWorkers).Msg("重新解析消费者已启动")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("接收到终止信号，正在优雅退出...")

	cancel()
	drainTimeout := time.After(10 * time.Second)
	for _, done := range consumerDone {
		select {
		case <-done:
		case <-drainTimeout:
			log.Warn().Msg("等待消费者退出超时")
		}
	}
	log.Info().Msg("优雅退出完成")
}

// handleUploadMessage 返回true表示Ack，false表示Nack并重新入队。
// 消息本身无法反序列化时直接Ack丢弃，重新入队只会无限循环。
func handleUploadMessage(ctx context.Context, svc *ingest.Service, log zerolog.Logger, body []byte) bool {
	var msg storage.ResumeUploadMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error().Err(err).Msg("反序列化上传消息失败，丢弃该消息")
		return true
	}
	if msg.SubmissionUUID == "" || msg.OriginalFileObjectKey == "" {
		log.Error().Str("submission_uuid", msg.SubmissionUUID).Msg("上传消息缺少必要字段，丢弃该消息")
		return true
	}

	if _, err := svc.ProcessUpload(ctx, &msg); err != nil {
		log.Error().Err(err).Str("submission_uuid", msg.SubmissionUUID).Msg("处理上传消息失败")
		return false
	}
	return true
}

// handleReparseMessage 返回true表示Ack，false表示Nack并重新入队
func handleReparseMessage(ctx context.Context, svc *ingest.Service, log zerolog.Logger, body []byte) bool {
	var msg storage.ReparseMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error().Err(err).Msg("反序列化重新解析消息失败，丢弃该消息")
		return true
	}
	if msg.SubmissionUUID == "" {
		log.Error().Msg("重新解析消息缺少submission_uuid，丢弃该消息")
		return true
	}

	if err := svc.Reparse(ctx, &msg); err != nil {
		log.Error().Err(err).Str("submission_uuid", msg.SubmissionUUID).Msg("重新解析失败")
		return false
	}
	return true
}

// weightsFromConfig 把配置的打分参数转换为内部权重，零值项沿用默认值
func weightsFromConfig(fc config.FreshnessConfig) dedup.Weights {
	w := dedup.DefaultWeights()
	if fc.FileModifiedCap > 0 {
		w.FileModifiedCap = fc.FileModifiedCap
	}
	if fc.UploadedCap > 0 {
		w.UploadedCap = fc.UploadedCap
	}
	if fc.YearsCap > 0 {
		w.YearsCap = fc.YearsCap
	}
	if fc.YearsFactor > 0 {
		w.YearsFactor = fc.YearsFactor
	}
	if fc.MonthsCap > 0 {
		w.MonthsCap = fc.MonthsCap
	}
	return w
}
