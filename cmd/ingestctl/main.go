package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cv-ingest-go/internal/config"
	"cv-ingest-go/internal/constants"
	applogger "cv-ingest-go/internal/logger"
	"cv-ingest-go/internal/storage"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/pflag"
)

// ingestctl 摄入流水线的运维工具：
//
//	ingestctl submit -f resume.pdf    上传简历并发布摄入消息
//	ingestctl reparse -u <uuid>       对已有记录发布重新解析消息
func main() {
	var configPath string
	var filePath string
	var submissionUUID string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.StringVarP(&filePath, "file", "f", "", "要提交的简历文件路径")
	pflag.StringVarP(&submissionUUID, "uuid", "u", "", "要重新解析的记录UUID")
	pflag.Parse()

	if pflag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "用法: ingestctl [submit|reparse] [选项]")
		pflag.Usage()
		os.Exit(1)
	}
	command := pflag.Arg(0)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		stdlog.Fatalf("加载配置失败: %v", err)
	}

	applogger.Init(applogger.Config{
		Level:      cfg.Logger.Level,
		Format:     "pretty",
		TimeFormat: cfg.Logger.TimeFormat,
	})
	log := applogger.Logger

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer store.Close()

	switch command {
	case "submit":
		if err := submitResume(ctx, store, filePath); err != nil {
			log.Fatal().Err(err).Msg("提交简历失败")
		}
	case "reparse":
		if err := requestReparse(ctx, store, submissionUUID); err != nil {
			log.Fatal().Err(err).Msg("发布重新解析消息失败")
		}
	default:
		log.Fatal().Str("command", command).Msg("未知命令")
	}
}

// submitResume 把本地文件流式上传到对象存储，然后发布上传事件
func submitResume(ctx context.Context, store *storage.Storage, filePath string) error {
	if filePath == "" {
		return fmt.Errorf("必须通过 -f 指定简历文件")
	}
	if store.MinIO == nil || store.RabbitMQ == nil {
		return fmt.Errorf("提交简历需要MinIO和RabbitMQ均可用")
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("读取文件信息失败: %w", err)
	}

	uuidV7, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("生成提交UUID失败: %w", err)
	}
	submissionUUID := uuidV7.String()
	fileExt := strings.ToLower(filepath.Ext(filePath))

	objectKey, md5Hex, err := store.MinIO.UploadResumeFileStreaming(ctx, submissionUUID, fileExt, f, info.Size())
	if err != nil {
		return fmt.Errorf("上传文件失败: %w", err)
	}

	modTime := info.ModTime().UTC()
	msg := storage.ResumeUploadMessage{
		SubmissionUUID:        submissionUUID,
		OriginalFileObjectKey: objectKey,
		OriginalFilename:      filepath.Base(filePath),
		FileExt:               fileExt,
		FileModifiedAt:        &modTime,
		UploadedAt:            time.Now().UTC(),
	}
	if err := store.RabbitMQ.PublishJSON(ctx, constants.IngestExchange, constants.ResumeUploadRoutingKey, msg, true); err != nil {
		return fmt.Errorf("发布上传消息失败: %w", err)
	}

	fmt.Printf("已提交: %s\n", submissionUUID)
	fmt.Printf("对象键: %s (MD5: %s)\n", objectKey, md5Hex)
	return nil
}

// requestReparse 对已入库的记录发布重新解析消息
func requestReparse(ctx context.Context, store *storage.Storage, submissionUUID string) error {
	if submissionUUID == "" {
		return fmt.Errorf("必须通过 -u 指定记录UUID")
	}
	if store.RabbitMQ == nil {
		return fmt.Errorf("重新解析需要RabbitMQ可用")
	}

	msg := storage.ReparseMessage{
		SubmissionUUID: submissionUUID,
		RequestedAt:    time.Now().UTC(),
	}
	if err := store.RabbitMQ.PublishJSON(ctx, constants.IngestExchange, constants.ReparseRoutingKey, msg, true); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}

	fmt.Printf("已请求重新解析: %s\n", submissionUUID)
	return nil
}
