package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// TextExtractor 原始文档文本提取接口
type TextExtractor interface {
	// ExtractTextFromBytes 从字节数组提取文本和元数据
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error)

	// ExtractTextFromReader 从io.Reader提取文本和元数据
	ExtractTextFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error)
}

// TikaTextExtractor 基于Apache Tika的文档文本提取器
type TikaTextExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client
	// 是否提取完整元数据
	extractFullMetadata bool
	// 是否提取精简元数据
	extractMinimalMetadata bool
	logger                 *log.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaTextExtractor)

// WithFullMetadata 配置是否提取完整元数据
func WithFullMetadata(extract bool) TikaOption {
	return func(e *TikaTextExtractor) {
		e.extractFullMetadata = extract
	}
}

// WithMinimalMetadata 配置是否提取精简的关键元数据
func WithMinimalMetadata(extract bool) TikaOption {
	return func(e *TikaTextExtractor) {
		e.extractMinimalMetadata = extract
	}
}

// WithTikaLogger 配置自定义日志记录器
func WithTikaLogger(logger *log.Logger) TikaOption {
	return func(e *TikaTextExtractor) {
		e.logger = logger
	}
}

// WithTimeout 配置HTTP客户端超时时间
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaTextExtractor) {
		e.Client.Timeout = timeout
	}
}

// 确保TikaTextExtractor实现了TextExtractor接口
var _ TextExtractor = (*TikaTextExtractor)(nil)

// NewTikaTextExtractor 创建一个新的Tika文本提取器
func NewTikaTextExtractor(serverURL string, options ...TikaOption) *TikaTextExtractor {
	client := &http.Client{
		Timeout: 60 * time.Second,
	}

	extractor := &TikaTextExtractor{
		ServerURL:              serverURL,
		Client:                 client,
		extractFullMetadata:    false,
		extractMinimalMetadata: true,
		logger:                 log.New(os.Stderr, "[TikaText] ", log.LstdFlags),
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor
}

// ExtractTextFromReader 从io.Reader提取文本内容
func (e *TikaTextExtractor) ExtractTextFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", nil, fmt.Errorf("读取文档内容失败: %w", err)
	}

	text, metadata, err := e.ExtractTextFromBytes(ctx, data, uri)

	duration := time.Since(startTime)
	if err != nil {
		e.logger.Printf("从Reader提取文本失败: %s (用时 %.2f秒)", err, duration.Seconds())
		return "", nil, err
	}

	e.logger.Printf("文本提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(text), duration.Seconds())
	return text, metadata, nil
}

// ExtractTextFromBytes 从字节数组提取文本内容
func (e *TikaTextExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	// 基本元数据，无论如何都会包含
	baseMetadata := map[string]interface{}{
		"extraction_time":  time.Now().Format(time.RFC3339),
		"source_file_path": uri,
	}

	url := fmt.Sprintf("%s/tika", e.ServerURL)

	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewReader(data))
	if err != nil {
		return "", baseMetadata, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	req.Header.Set("Accept", "text/plain")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", baseMetadata, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", baseMetadata, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", baseMetadata, fmt.Errorf("读取Tika响应失败: %w", err)
	}

	text := string(textBytes)

	baseMetadata["text_length"] = len(text)
	baseMetadata["processing_duration_ms"] = time.Since(startTime).Milliseconds()

	if e.extractFullMetadata || e.extractMinimalMetadata {
		rawMetadata, err := e.extractMetadata(ctx, data, uri)
		if err == nil {
			if e.extractFullMetadata {
				for k, v := range rawMetadata {
					baseMetadata[k] = v
				}
			} else {
				for k, v := range rawMetadata {
					if isImportantMetadata(k) {
						baseMetadata[k] = v
					}
				}
			}
		} else {
			e.logger.Printf("元数据提取失败: %v, 继续使用基本元数据", err)
		}
	}

	return text, baseMetadata, nil
}

// extractMetadata 提取文档元数据
func (e *TikaTextExtractor) extractMetadata(ctx context.Context, data []byte, uri string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/meta", e.ServerURL)

	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	metadataBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}

	return metadata, nil
}

// isImportantMetadata 判断元数据字段是否保留进精简元数据
func isImportantMetadata(key string) bool {
	importantKeys := map[string]bool{
		"pdf:PDFVersion":      true,
		"xmpTPg:NPages":       true,
		"dcterms:created":     true,
		"dcterms:modified":    true,
		"Last-Modified":       true,
		"language":            true,
		"dc:title":            true,
		"Content-Type":        true,
		"pdf:docinfo:title":   true,
		"pdf:docinfo:created": true,
	}
	return importantKeys[key]
}

// FileModifiedFromMetadata 从Tika元数据中解析文件修改时间。
// 文档内嵌的修改时间是新鲜度打分的最高优先级信号，解析不出来时返回nil。
func FileModifiedFromMetadata(metadata map[string]interface{}) *time.Time {
	for _, key := range []string{"dcterms:modified", "Last-Modified", "Last-Save-Date", "modified"} {
		raw, ok := metadata[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", time.RFC1123} {
			if t, err := time.Parse(layout, s); err == nil {
				utc := t.UTC()
				return &utc
			}
		}
	}
	return nil
}
