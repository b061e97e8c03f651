package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cv-ingest-go/internal/constants"
	"cv-ingest-go/internal/dedup"
	"cv-ingest-go/internal/parser"
	"cv-ingest-go/internal/storage"
	"cv-ingest-go/internal/tracing"
	"cv-ingest-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ingestTracer = otel.Tracer("cv-ingest-go/ingest")

// FieldExtractor 结构化字段抽取协作方（LLM实现见parser包）
type FieldExtractor interface {
	Extract(ctx context.Context, resumeText string) (*types.RawExtraction, error)
}

// Service 摄入流水线：下载 -> 提取 -> 抽取 -> 修复 -> 归一化 -> 指纹 -> 判定 -> 提交。
// 每条上传消息走完整个链路，终态要么是一条状态明确的数据库记录，
// 要么是被丢弃的重复文件；绝不存在"静默成功"。
type Service struct {
	store      *storage.Storage
	extractor  parser.TextExtractor
	fields     FieldExtractor
	normalizer *parser.FieldNormalizer
	resolver   *dedup.Resolver

	lockTTL time.Duration
	logger  zerolog.Logger
}

// NewService 创建摄入流水线服务
func NewService(store *storage.Storage, extractor parser.TextExtractor, fields FieldExtractor,
	normalizer *parser.FieldNormalizer, resolver *dedup.Resolver, lockTTL time.Duration, logger zerolog.Logger) *Service {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Service{
		store:      store,
		extractor:  extractor,
		fields:     fields,
		normalizer: normalizer,
		resolver:   resolver,
		lockTTL:    lockTTL,
		logger:     logger,
	}
}

// ProcessUpload 处理一条简历上传消息，返回最终判定。
// 返回错误表示暂时性失败，调用方应Nack让消息重新入队；
// 解析质量问题不是错误，会以failed状态的记录落库。
func (s *Service) ProcessUpload(ctx context.Context, msg *storage.ResumeUploadMessage) (*types.DuplicateDecision, error) {
	ctx, span := ingestTracer.Start(ctx, "Ingest.ProcessUpload", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("candidate.submission_uuid", msg.SubmissionUUID),
		attribute.String("file.name", tracing.SafeAttributeValue("filename", msg.OriginalFilename, tracing.DefaultMaxLength)),
	)

	log := s.logger.With().Str("submission_uuid", msg.SubmissionUUID).Logger()

	// 1. 下载原始文件
	data, err := s.store.MinIO.GetResumeFile(ctx, msg.OriginalFileObjectKey)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, NewDownloadError(msg.SubmissionUUID, err.Error())
	}

	// 2. 提取全文与文档元数据
	text, metadata, err := s.extractor.ExtractTextFromBytes(ctx, data, msg.OriginalFilename)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, NewExtractError(msg.SubmissionUUID, err.Error())
	}

	// 文件修改时间：消息里的存储层元数据优先，其次文档内嵌元数据
	fileModifiedAt := msg.FileModifiedAt
	if fileModifiedAt == nil {
		fileModifiedAt = parser.FileModifiedFromMetadata(metadata)
	}

	// 3. 提取文本归档，重新解析时从这里取回
	textKey, err := s.store.MinIO.UploadExtractedText(ctx, msg.SubmissionUUID, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, NewStoreError(msg.SubmissionUUID, err.Error())
	}

	// 4. LLM字段抽取（内部已含修复）
	raw, err := s.fields.Extract(ctx, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, NewLLMError(msg.SubmissionUUID, err.Error())
	}

	// 5. 字段归一化。UNPARSEABLE会得到fallback草稿并以failed状态落库，
	//    绝不因解析质量问题让消息无限重试。
	parsed := s.normalizer.Normalize(raw.Fields)
	status := constants.StatusCompleted
	errorMessage := ""
	if raw.State == types.ExtractionUnparseable {
		status = constants.StatusFailed
		errorMessage = raw.Err
		log.Warn().Str("extraction_state", string(raw.State)).Msg("字段抽取不可解析，以failed状态落库等待人工复核")
	}

	// 6. 指纹
	contentHash := dedup.ContentHash(text)
	personSoftID := dedup.PersonSoftID(parsed.FirstName, parsed.LastName, parsed.PhoneNumber)
	span.SetAttributes(attribute.String("candidate.person_soft_id", personSoftID))

	uploadedAt := msg.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	// 7. 同一人的判定与提交之间加锁，避免并发互相Replace
	unlock, err := s.acquirePersonLock(ctx, personSoftID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, err
	}
	defer unlock()

	// 8. 身份判定
	incoming := &types.IncomingCandidate{
		Parsed:         parsed,
		ContentHash:    contentHash,
		PersonSoftID:   personSoftID,
		FileModifiedAt: fileModifiedAt,
		UploadedAt:     uploadedAt,
	}
	decision, err := s.resolver.Resolve(ctx, incoming)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, NewResolveError(msg.SubmissionUUID, err.Error())
	}
	span.SetAttributes(attribute.String("dedup.outcome", string(decision.Outcome)))

	switch decision.Outcome {
	case types.DecisionIdentical, types.DecisionOlder:
		// 丢弃新文件，已有记录保持不变
		s.discardArtifacts(ctx, msg)
		log.Info().
			Str("outcome", string(decision.Outcome)).
			Str("conflicting_uuid", decision.ConflictingUUID).
			Msg(decision.Message)
		span.SetStatus(codes.Ok, "")
		return decision, nil

	case types.DecisionReplace:
		if err := s.commitReplace(ctx, msg, parsed, decision, contentHash, personSoftID, textKey, status, errorMessage, fileModifiedAt); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, err
		}

	default: // Keep
		identical, err := s.commitKeep(ctx, msg, parsed, contentHash, personSoftID, textKey, status, errorMessage, fileModifiedAt)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, err
		}
		if identical != nil {
			// 并发上传撞了唯一索引，降级为Identical
			s.discardArtifacts(ctx, msg)
			span.SetStatus(codes.Ok, "")
			return identical, nil
		}
	}

	log.Info().
		Str("outcome", string(decision.Outcome)).
		Str("status", status).
		Str("extraction_state", string(raw.State)).
		Msg("简历摄入完成")
	span.SetStatus(codes.Ok, "")
	return decision, nil
}

// commitKeep 创建全新候选人记录。
// 并发上传同内容文件时唯一索引兜底，返回降级的Identical判定。
func (s *Service) commitKeep(ctx context.Context, msg *storage.ResumeUploadMessage, parsed *types.ParsedResume,
	contentHash, personSoftID, textKey, status, errorMessage string, fileModifiedAt *time.Time) (*types.DuplicateDecision, error) {

	hashAdded, err := s.markContentHash(ctx, contentHash)
	if err != nil {
		return nil, NewCommitError(msg.SubmissionUUID, err.Error())
	}
	if !hashAdded && contentHash != "" {
		// 快速通道显示另一个进程刚提交了同内容文件
		return &types.DuplicateDecision{
			Outcome: types.DecisionIdentical,
			Message: "Identical file already exists (concurrent upload)",
		}, nil
	}

	rec, err := buildCandidateRecord(msg, parsed, contentHash, personSoftID, textKey, status, errorMessage, fileModifiedAt)
	if err != nil {
		s.rollbackContentHash(ctx, contentHash)
		return nil, NewCommitError(msg.SubmissionUUID, err.Error())
	}

	if err := s.store.MySQL.CreateCandidate(ctx, rec); err != nil {
		if storage.IsDuplicateKeyError(err) || isMySQLDuplicateEntry(err) {
			return &types.DuplicateDecision{
				Outcome: types.DecisionIdentical,
				Message: "Identical file already exists (concurrent upload)",
			}, nil
		}
		s.rollbackContentHash(ctx, contentHash)
		return nil, NewCommitError(msg.SubmissionUUID, err.Error())
	}
	return nil, nil
}

// commitReplace 在单个事务内删除被取代的记录并创建新记录，
// 之后清理旧记录的对象存储残留与指纹。
func (s *Service) commitReplace(ctx context.Context, msg *storage.ResumeUploadMessage, parsed *types.ParsedResume,
	decision *types.DuplicateDecision, contentHash, personSoftID, textKey, status, errorMessage string,
	fileModifiedAt *time.Time) error {

	// 先取旧记录，拿到它的文件信息与指纹用于事后清理
	old, err := s.store.MySQL.GetCandidate(ctx, decision.ConflictingUUID)
	if err != nil {
		return NewDatabaseError(msg.SubmissionUUID, err.Error())
	}

	hashAdded, err := s.markContentHash(ctx, contentHash)
	if err != nil {
		return NewCommitError(msg.SubmissionUUID, err.Error())
	}
	_ = hashAdded // Replace时新旧内容必然不同，指纹已在集合中也无妨

	rec, err := buildCandidateRecord(msg, parsed, contentHash, personSoftID, textKey, status, errorMessage, fileModifiedAt)
	if err != nil {
		s.rollbackContentHash(ctx, contentHash)
		return NewCommitError(msg.SubmissionUUID, err.Error())
	}

	if err := s.store.MySQL.ReplaceCandidate(ctx, decision.ConflictingUUID, rec); err != nil {
		s.rollbackContentHash(ctx, contentHash)
		return NewCommitError(msg.SubmissionUUID, err.Error())
	}

	// 数据库已提交，以下清理失败只记日志，不回滚摄入结果
	if old != nil {
		if err := s.store.MinIO.DeleteResumeArtifacts(ctx, old.SubmissionUUID, old.FileType); err != nil {
			s.logger.Warn().Err(err).
				Str("superseded_uuid", old.SubmissionUUID).
				Msg("清理被取代记录的对象存储残留失败")
		}
		if oldHash := old.ContentHashValue(); oldHash != "" {
			s.rollbackContentHash(ctx, oldHash)
		}
	}
	return nil
}

// Reparse 对已有记录重新执行字段抽取与归一化，就地覆盖字段。
// 不触发身份判定：主键、指纹、软标识与文件信息保持不变。
func (s *Service) Reparse(ctx context.Context, msg *storage.ReparseMessage) error {
	ctx, span := ingestTracer.Start(ctx, "Ingest.Reparse", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("candidate.submission_uuid", msg.SubmissionUUID))

	rec, err := s.store.MySQL.GetCandidate(ctx, msg.SubmissionUUID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return NewDatabaseError(msg.SubmissionUUID, err.Error())
	}
	if rec == nil {
		err := fmt.Errorf("候选人记录不存在")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return NewDatabaseError(msg.SubmissionUUID, err.Error())
	}

	textKey := rec.ExtractedTextPathOSS
	if textKey == "" {
		textKey = fmt.Sprintf("resume/%s/extracted_text.txt", msg.SubmissionUUID)
	}
	text, err := s.store.MinIO.GetExtractedText(ctx, textKey)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return NewDownloadError(msg.SubmissionUUID, err.Error())
	}

	raw, err := s.fields.Extract(ctx, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return NewLLMError(msg.SubmissionUUID, err.Error())
	}

	parsed := s.normalizer.Normalize(raw.Fields)
	status := constants.StatusCompleted
	if raw.State == types.ExtractionUnparseable {
		status = constants.StatusFailed
	}

	updates, err := fieldUpdatesFromParsed(parsed, status)
	if err != nil {
		return NewUpdateError(msg.SubmissionUUID, err.Error())
	}
	if status == constants.StatusFailed {
		updates["error_message"] = raw.Err
	}

	if err := s.store.MySQL.UpdateCandidateFields(ctx, msg.SubmissionUUID, updates); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return NewUpdateError(msg.SubmissionUUID, err.Error())
	}

	s.logger.Info().
		Str("submission_uuid", msg.SubmissionUUID).
		Str("status", status).
		Str("extraction_state", string(raw.State)).
		Msg("重新解析完成")
	span.SetStatus(codes.Ok, "")
	return nil
}

// acquirePersonLock 按人员软标识获取判定锁，Redis未配置时退化为无锁
func (s *Service) acquirePersonLock(ctx context.Context, personSoftID string) (func(), error) {
	if s.store.Redis == nil {
		return func() {}, nil
	}
	lockKey := s.store.Redis.FormatKey(constants.PersonLockKeyPrefix) + personSoftID
	lockValue, err := s.store.Redis.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, NewResolveError("", fmt.Sprintf("获取判定锁失败: %v", err))
	}
	if lockValue == "" {
		// 同一个人的另一份简历正在处理，让消息重新入队稍后重试
		return nil, NewResolveError("", fmt.Sprintf("人员 %s 的判定锁被占用", personSoftID))
	}
	return func() {
		if _, err := s.store.Redis.ReleaseLock(context.WithoutCancel(ctx), lockKey, lockValue); err != nil {
			s.logger.Warn().Err(err).Str("lock_key", lockKey).Msg("释放判定锁失败")
		}
	}, nil
}

// markContentHash 指纹快速通道：返回是否为首次出现
func (s *Service) markContentHash(ctx context.Context, contentHash string) (bool, error) {
	if s.store.Redis == nil || contentHash == "" {
		return true, nil
	}
	exists, err := s.store.Redis.CheckAndAddContentHash(ctx, contentHash)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// rollbackContentHash 提交失败后回滚快速通道，否则该内容将被永久误判为已存在
func (s *Service) rollbackContentHash(ctx context.Context, contentHash string) {
	if s.store.Redis == nil || contentHash == "" {
		return
	}
	if err := s.store.Redis.RemoveContentHash(ctx, contentHash); err != nil {
		s.logger.Warn().Err(err).Msg("回滚内容指纹失败")
	}
}

// discardArtifacts 丢弃重复提交的新文件与提取文本
func (s *Service) discardArtifacts(ctx context.Context, msg *storage.ResumeUploadMessage) {
	if err := s.store.MinIO.DeleteResumeArtifacts(ctx, msg.SubmissionUUID, msg.FileExt); err != nil {
		s.logger.Warn().Err(err).
			Str("submission_uuid", msg.SubmissionUUID).
			Msg("丢弃重复文件失败")
	}
}

// isMySQLDuplicateEntry 识别MySQL 1062唯一约束冲突
func isMySQLDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "Duplicate entry") ||
		strings.Contains(err.Error(), "Error 1062")
}
