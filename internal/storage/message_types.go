package storage

import "time"

// ResumeUploadMessage 简历上传事件，由上传入口发布、摄入流水线消费
type ResumeUploadMessage struct {
	SubmissionUUID string `json:"submission_uuid"`

	// 原始文件在对象存储中的键与元数据
	OriginalFileObjectKey string     `json:"original_file_object_key"`
	OriginalFilename      string     `json:"original_filename"`
	FileExt               string     `json:"file_ext"`
	FileModifiedAt        *time.Time `json:"file_modified_at,omitempty"` // 存储层未提供时缺省

	UploadedAt time.Time `json:"uploaded_at"`

	// 重试计数，消费端用于放弃反复失败的消息
	Attempt int `json:"attempt,omitempty"`
}

// ReparseMessage 重新解析请求：对已有记录就地覆盖字段，不触发身份判定
type ReparseMessage struct {
	SubmissionUUID string    `json:"submission_uuid"`
	RequestedAt    time.Time `json:"requested_at"`
}
