package ingest

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrResumeDownloadFailed = errors.New("下载简历失败")
	ErrExtractTextFailed    = errors.New("提取简历文本失败")
	ErrLLMExtractionFailed  = errors.New("LLM字段抽取失败")
	ErrStoreTextFailed      = errors.New("上传提取文本失败")
	ErrResolveFailed        = errors.New("身份判定失败")
	ErrCommitFailed         = errors.New("提交候选人记录失败")
	ErrUpdateStatusFailed   = errors.New("更新处理状态失败")
	ErrDatabaseFailed       = errors.New("数据库操作失败")
)

// IngestError 包含详细错误信息的自定义错误
type IngestError struct {
	SubmissionUUID string
	Op             string
	BaseErr        error
	Detail         string
}

func (e *IngestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, UUID:%s): %s", e.BaseErr, e.Op, e.SubmissionUUID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s)", e.BaseErr, e.Op, e.SubmissionUUID)
}

func (e *IngestError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *IngestError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewDownloadError(uuid, detail string) error {
	return &IngestError{
		SubmissionUUID: uuid,
		Op:             "download",
		BaseErr:        ErrResumeDownloadFailed,
		Detail:         detail,
	}
}

func NewExtractError(uuid, detail string) error {
	return &IngestError{
		SubmissionUUID: uuid,
		Op:             "extract",
		BaseErr:        ErrExtractTextFailed,
		Detail:         detail,
	}
}

func NewLLMError(uuid, detail string) error {
	return &IngestError{
		SubmissionUUID: uuid,
		Op:             "llm",
		BaseErr:        ErrLLMExtractionFailed,
		Detail:         detail,
	}
}

func NewStoreError(uuid, detail string) error {
	return &IngestError{
		SubmissionUUID: uuid,
		Op:             "store",
		BaseErr:        ErrStoreTextFailed,
		Detail:         detail,
	}
}

func NewResolveError(uuid, detail string) error {
	return &IngestError{
		SubmissionUUID: uuid,
		Op:             "resolve",
		BaseErr:        ErrResolveFailed,
		Detail:         detail,
	}
}

func NewCommitError(uuid, detail string) error {
	return &IngestError{
		SubmissionUUID: uuid,
		Op:             "commit",
		BaseErr:        ErrCommitFailed,
		Detail:         detail,
	}
}

func NewUpdateError(uuid, detail string) error {
	return &IngestError{
		SubmissionUUID: uuid,
		Op:             "update",
		BaseErr:        ErrUpdateStatusFailed,
		Detail:         detail,
	}
}

func NewDatabaseError(uuid, detail string) error {
	return &IngestError{
		SubmissionUUID: uuid,
		Op:             "database",
		BaseErr:        ErrDatabaseFailed,
		Detail:         detail,
	}
}
