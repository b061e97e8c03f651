package constants

const (
	// DefaultParserVer 解析器版本标记，随提取/抽取组件升级而变更
	DefaultParserVer = "1.0"

	// 处理状态机：pending -> processing -> completed / failed / duplicate / superseded
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	// StatusDuplicate 被判定为Identical或Older的提交
	StatusDuplicate = "duplicate"
	// StatusSuperseded 被更新鲜的简历Replace掉的旧记录（仅在保留历史时使用）
	StatusSuperseded = "superseded"

	// RabbitMQ 拓扑
	IngestExchange         = "ingest.events"
	ResumeUploadQueue      = "ingest.resume_upload"
	ResumeUploadRoutingKey = "resume.uploaded"
	ReparseQueue           = "ingest.reparse"
	ReparseRoutingKey      = "resume.reparse"
)
