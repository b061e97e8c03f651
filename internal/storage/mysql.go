package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cv-ingest-go/internal/config"
	"cv-ingest-go/internal/storage/models"
	"cv-ingest-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("cv-ingest-go/storage/mysql")

type gormSpanKey struct{}

// GormTracingPlugin 向OpenTelemetry中添加数据库操作追踪点的GORM插件
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{tracer: mysqlTracer, dbName: dbName}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 为CRUD操作注册Before/After回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	type hook struct {
		kind string
		op   string
	}
	for _, h := range []hook{
		{"create", "CREATE"}, {"query", "SELECT"}, {"update", "UPDATE"},
		{"delete", "DELETE"}, {"row", "ROW"}, {"raw", "RAW"},
	} {
		type registerer interface {
			Register(string, func(*gorm.DB)) error
		}
		var beforeCb, afterCb registerer
		switch h.kind {
		case "create":
			beforeCb, afterCb = cb.Create().Before("gorm:"+h.kind), cb.Create().After("gorm:"+h.kind)
		case "query":
			beforeCb, afterCb = cb.Query().Before("gorm:"+h.kind), cb.Query().After("gorm:"+h.kind)
		case "update":
			beforeCb, afterCb = cb.Update().Before("gorm:"+h.kind), cb.Update().After("gorm:"+h.kind)
		case "delete":
			beforeCb, afterCb = cb.Delete().Before("gorm:"+h.kind), cb.Delete().After("gorm:"+h.kind)
		case "row":
			beforeCb, afterCb = cb.Row().Before("gorm:"+h.kind), cb.Row().After("gorm:"+h.kind)
		case "raw":
			beforeCb, afterCb = cb.Raw().Before("gorm:"+h.kind), cb.Raw().After("gorm:"+h.kind)
		}
		if err := beforeCb.Register("otel:before_"+h.kind, p.before(h.op)); err != nil {
			return err
		}
		if err := afterCb.Register("otel:after_"+h.kind, p.after()); err != nil {
			return err
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}
		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
			attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())),
		)

		// ErrRecordNotFound是业务正常情况，不作为错误上报
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}

// MySQL 候选人记录的关系数据库存储
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	default:
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: m.db.Logger.LogMode(logger.Silent)})
	if err := silentDB.AutoMigrate(&models.CandidateRecord{}); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// FindByContentHash 按内容指纹精确查找，未命中返回nil
func (m *MySQL) FindByContentHash(ctx context.Context, contentHash string) (*models.CandidateRecord, error) {
	if contentHash == "" {
		return nil, nil
	}
	var rec models.CandidateRecord
	err := m.db.WithContext(ctx).Where("content_hash = ?", contentHash).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindBySoftID 返回人员软标识相同的全部记录（新鲜度排序由调用方负责）
func (m *MySQL) FindBySoftID(ctx context.Context, softID string) ([]models.CandidateRecord, error) {
	if softID == "" {
		return nil, nil
	}
	var recs []models.CandidateRecord
	err := m.db.WithContext(ctx).
		Where("person_soft_id = ?", softID).
		Order("uploaded_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// FindByNameLike 姓名大小写不敏感的子串匹配（宽松回退查找）。
// 绑定参数也转小写，两侧都小写后匹配结果不受列的排序规则影响。
func (m *MySQL) FindByNameLike(ctx context.Context, firstName, lastName string) ([]models.CandidateRecord, error) {
	if firstName == "" || lastName == "" {
		return nil, nil
	}
	var recs []models.CandidateRecord
	err := m.db.WithContext(ctx).
		Where("LOWER(first_name) LIKE ? AND LOWER(last_name) LIKE ?",
			"%"+likeEscape(strings.ToLower(firstName))+"%", "%"+likeEscape(strings.ToLower(lastName))+"%").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// CreateCandidate 创建候选人记录。ContentHash唯一索引冲突会原样返回，
// 由上层识别为并发上传的同内容文件。
func (m *MySQL) CreateCandidate(ctx context.Context, rec *models.CandidateRecord) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateCandidate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.sql.table", rec.TableName()),
		attribute.String("candidate.submission_uuid", rec.SubmissionUUID),
	)

	if err := m.db.WithContext(ctx).Create(rec).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ReplaceCandidate 在单个事务内删除被取代的记录并创建新记录，
// 保证同一个人不会出现0条或2条记录可见的窗口（删除先于新记录可见提交）。
func (m *MySQL) ReplaceCandidate(ctx context.Context, supersededUUID string, rec *models.CandidateRecord) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.ReplaceCandidate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("candidate.superseded_uuid", supersededUUID),
		attribute.String("candidate.submission_uuid", rec.SubmissionUUID),
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_uuid = ?", supersededUUID).
			Delete(&models.CandidateRecord{}).Error; err != nil {
			return fmt.Errorf("删除被取代的记录失败: %w", err)
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("创建替换记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// UpdateProcessingStatus 更新处理状态，errorMessage仅在失败时有意义
func (m *MySQL) UpdateProcessingStatus(ctx context.Context, submissionUUID, status, errorMessage string) error {
	updates := map[string]interface{}{"processing_status": status}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	return m.db.WithContext(ctx).Model(&models.CandidateRecord{}).
		Where("submission_uuid = ?", submissionUUID).
		Updates(updates).Error
}

// UpdateCandidateFields 重新解析时就地覆盖字段，不改变身份与主键
func (m *MySQL) UpdateCandidateFields(ctx context.Context, submissionUUID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return m.db.WithContext(ctx).Model(&models.CandidateRecord{}).
		Where("submission_uuid = ?", submissionUUID).
		Updates(updates).Error
}

// GetCandidate 按主键取回记录，未命中返回nil
func (m *MySQL) GetCandidate(ctx context.Context, submissionUUID string) (*models.CandidateRecord, error) {
	var rec models.CandidateRecord
	err := m.db.WithContext(ctx).Where("submission_uuid = ?", submissionUUID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteCandidate 删除记录（外部显式删除请求）
func (m *MySQL) DeleteCandidate(ctx context.Context, submissionUUID string) error {
	return m.db.WithContext(ctx).Where("submission_uuid = ?", submissionUUID).
		Delete(&models.CandidateRecord{}).Error
}

// IsDuplicateKeyError 判断错误是否为唯一索引冲突（并发同内容上传的兜底信号）
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// likeEscape 转义LIKE模式中的通配符
func likeEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' || s[i] == '_' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
