package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"cv-ingest-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadFile 上传文件到指定路径
	UploadFile(ctx context.Context, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error)

	// DownloadFile 下载文件
	DownloadFile(ctx context.Context, objectName string) ([]byte, error)

	// GetPresignedURL 获取预签名URL
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)

	// DeleteFile 删除文件
	DeleteFile(ctx context.Context, objectName string) error

	// 简历特定操作
	UploadResumeFile(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, error)
	UploadExtractedText(ctx context.Context, submissionUUID string, text string) (string, error)
	GetResumeFile(ctx context.Context, objectKey string) ([]byte, error)
	GetExtractedText(ctx context.Context, objectKey string) (string, error)

	// 流式上传并计算MD5
	UploadResumeFileStreaming(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)

	// DeleteResumeArtifacts 删除一条提交的全部对象（原始文件+提取文本）
	DeleteResumeArtifacts(ctx context.Context, submissionUUID, fileExt string) error
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client          *minio.Client
	cfg             *config.MinIOConfig
	originalBucket  string
	extractedBucket string
	logger          *log.Logger
}

// NewMinIO 创建MinIO客户端并确保双存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	logger.Printf("[MinIO] Initializing client: endpoint=%s, originalBucket=%s, extractedBucket=%s",
		cfg.Endpoint, cfg.OriginalsBucket, cfg.ExtractedTextBucket)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	originalBucket := cfg.OriginalsBucket
	if originalBucket == "" {
		originalBucket = "resume-originals"
	}
	extractedBucket := cfg.ExtractedTextBucket
	if extractedBucket == "" {
		extractedBucket = "extracted-text"
	}

	m := &MinIO{
		client:          client,
		cfg:             cfg,
		originalBucket:  originalBucket,
		extractedBucket: extractedBucket,
		logger:          logger,
	}

	if err := m.ensureBucketExists(originalBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原始简历存储桶 %s 存在失败: %w", originalBucket, err)
	}
	if err := m.ensureBucketExists(extractedBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保提取文本存储桶 %s 存在失败: %w", extractedBucket, err)
	}

	if cfg.OriginalFileExpireDays > 0 || cfg.ExtractedTextExpireDays > 0 {
		if err := m.setupLifecycleRules(context.Background()); err != nil {
			logger.Printf("[MinIO] Warning: failed to set up lifecycle rules: %v", err)
		}
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Printf("[MinIO] Bucket %s does not exist, creating...", bucketName)
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
	}
	return nil
}

// setupLifecycleRules 设置对象生命周期规则
func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalBucket, "expire-originals", m.cfg.OriginalFileExpireDays); err != nil {
			return fmt.Errorf("为原始文件存储桶 %s 设置生命周期失败: %w", m.originalBucket, err)
		}
	}
	if m.cfg.ExtractedTextExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.extractedBucket, "expire-extracted-text", m.cfg.ExtractedTextExpireDays); err != nil {
			return fmt.Errorf("为提取文本存储桶 %s 设置生命周期失败: %w", m.extractedBucket, err)
		}
	}
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	config := lifecycle.NewConfiguration()
	config.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, config)
}

// UploadFile 上传文件到指定路径。
// objectName 形如 "bucket/key" 时优先使用其中的bucket（仅限已配置的桶）。
func (m *MinIO) UploadFile(ctx context.Context, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error) {
	bucketToUse := m.originalBucket
	actualObjectName := objectName
	if strings.Contains(objectName, "/") {
		parts := strings.SplitN(objectName, "/", 2)
		if len(parts) == 2 {
			if parts[0] == m.originalBucket || parts[0] == m.extractedBucket {
				bucketToUse = parts[0]
				actualObjectName = parts[1]
			}
		}
	}

	_, err := m.client.PutObject(ctx, bucketToUse, actualObjectName, reader, fileSize,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", bucketToUse, actualObjectName, err)
	}
	return actualObjectName, nil
}

func (m *MinIO) uploadFileFromBytes(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	return m.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType)
}

// UploadResumeFile 上传原始简历文件到originalsBucket，返回对象键（不含bucket前缀）
func (m *MinIO) UploadResumeFile(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, error) {
	objectName := resumeObjectKey(submissionUUID, fileExt)
	contentType := getContentType(fileExt)
	return m.UploadFile(ctx, objectName, reader, fileSize, contentType)
}

// UploadResumeFileStreaming 流式上传简历文件并同时计算MD5
// 返回: objectKey, md5Hex, error
func (m *MinIO) UploadResumeFileStreaming(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	objectName := resumeObjectKey(submissionUUID, fileExt)
	contentType := getContentType(fileExt)

	md5Hash := md5.New()
	teeReader := io.TeeReader(reader, md5Hash)

	info, err := m.client.PutObject(ctx, m.originalBucket, objectName, teeReader,
		fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", "", fmt.Errorf("流式上传文件到MinIO失败: %w", err)
	}

	md5Hex := hex.EncodeToString(md5Hash.Sum(nil))

	if m.cfg.EnableTestLogging {
		m.logger.Printf("[MinIO-UploadResumeFileStreaming] uploaded %s, ETag: %s, Size: %d, MD5: %s",
			objectName, info.ETag, info.Size, md5Hex)
	}

	return objectName, md5Hex, nil
}

// UploadExtractedText 上传提取后的简历全文
func (m *MinIO) UploadExtractedText(ctx context.Context, submissionUUID string, text string) (string, error) {
	objectName := fmt.Sprintf("resume/%s/extracted_text.txt", submissionUUID)
	_, err := m.client.PutObject(ctx, m.extractedBucket, objectName, strings.NewReader(text),
		int64(len(text)), minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return "", fmt.Errorf("上传提取文本 %s 到存储桶 %s 失败: %w", objectName, m.extractedBucket, err)
	}
	return objectName, nil
}

// DownloadFile 下载文件，objectName 形如 "bucket/key" 时使用其中的bucket
func (m *MinIO) DownloadFile(ctx context.Context, objectName string) ([]byte, error) {
	bucketName := m.originalBucket
	actualObjectName := objectName

	if strings.Contains(objectName, "/") {
		parts := strings.SplitN(objectName, "/", 2)
		if len(parts) == 2 && (parts[0] == m.originalBucket || parts[0] == m.extractedBucket) {
			bucketName = parts[0]
			actualObjectName = parts[1]
		}
	}

	obj, err := m.client.GetObject(ctx, bucketName, actualObjectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucketName, actualObjectName, err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", bucketName, actualObjectName, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", bucketName, actualObjectName, err)
	}
	return data, nil
}

// GetResumeFile 从原始存储桶获取简历文件
func (m *MinIO) GetResumeFile(ctx context.Context, objectKey string) ([]byte, error) {
	return m.DownloadFile(ctx, fmt.Sprintf("%s/%s", m.originalBucket, objectKey))
}

// GetExtractedText 从文本存储桶获取提取后的全文
func (m *MinIO) GetExtractedText(ctx context.Context, objectKey string) (string, error) {
	data, err := m.DownloadFile(ctx, fmt.Sprintf("%s/%s", m.extractedBucket, objectKey))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetPresignedURL 获取预签名URL（原始存储桶）
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := m.client.PresignedGetObject(ctx, m.originalBucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteFile 删除原始存储桶中的文件
func (m *MinIO) DeleteFile(ctx context.Context, objectName string) error {
	err := m.client.RemoveObject(ctx, m.originalBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectName, err)
	}
	return nil
}

// DeleteResumeArtifacts 删除一条提交的全部对象。
// Replace判定后旧记录的原始文件与提取文本一并清理，不留孤儿对象。
func (m *MinIO) DeleteResumeArtifacts(ctx context.Context, submissionUUID, fileExt string) error {
	originalKey := resumeObjectKey(submissionUUID, fileExt)
	if err := m.client.RemoveObject(ctx, m.originalBucket, originalKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除原始文件 %s 失败: %w", originalKey, err)
	}
	textKey := fmt.Sprintf("resume/%s/extracted_text.txt", submissionUUID)
	if err := m.client.RemoveObject(ctx, m.extractedBucket, textKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除提取文本 %s 失败: %w", textKey, err)
	}
	return nil
}

// StatObject 暴露底层的StatObject方法，用于测试或特定场景
func (m *MinIO) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, bucketName, objectName, opts)
}

// RemoveObject 暴露底层的RemoveObject方法，用于测试或特定场景
func (m *MinIO) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.client.RemoveObject(ctx, bucketName, objectName, opts)
}

func resumeObjectKey(submissionUUID, fileExt string) string {
	return fmt.Sprintf("resume/%s/original%s", submissionUUID, fileExt)
}

// getContentType 根据扩展名推断内容类型
func getContentType(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
