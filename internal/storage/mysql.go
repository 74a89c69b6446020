package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"reelcv-ai-go/internal/config"
	"reelcv-ai-go/internal/constants"
	"reelcv-ai-go/internal/storage/models"
	"reelcv-ai-go/internal/tracing"
	"reelcv-ai-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("reelcv-ai-go/storage/mysql")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	dbSystem       string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
			attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())),
		)

		// ErrRecordNotFound 是业务逻辑正常情况的一部分，不应作为错误处理
		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		dbSystem:       "mysql",
		disableErrSkip: true,
	}
}

// Database 关系数据库接口
type Database interface {
	// DB 返回GORM数据库连接实例
	DB() *gorm.DB

	// Close 关闭数据库连接
	Close() error
}

// 确保MySQL实现了Database接口
var _ Database = (*MySQL)(nil)

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true, // 开启预编译语句缓存
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	// 注册OpenTelemetry追踪插件
	tracingPlugin := NewGormTracingPlugin(cfg.Database)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 创建一个静默的logger以关闭迁移期间的SQL日志打印
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.VideoAnalysis{},
		&models.AnalysisQueueItem{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
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

// CreateVideoAnalysis 在一个事务中创建分析记录和对应的调度队列项
func (m *MySQL) CreateVideoAnalysis(ctx context.Context, analysis *models.VideoAnalysis, requestPayload []byte) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(analysis).Error; err != nil {
			return fmt.Errorf("创建分析记录失败: %w", err)
		}
		queueItem := &models.AnalysisQueueItem{
			VideoAnalysisID: analysis.AnalysisID,
			Priority:        constants.DefaultQueuePriority,
			ScheduledFor:    time.Now(),
			Payload:         requestPayload,
			Status:          models.QueueStatusPending,
		}
		if err := tx.Create(queueItem).Error; err != nil {
			return fmt.Errorf("创建调度队列项失败: %w", err)
		}
		return nil
	})
}

// MarkAnalysisProcessing 将分析记录置为processing并记录开始时间
func (m *MySQL) MarkAnalysisProcessing(ctx context.Context, analysisID string) error {
	now := time.Now()
	return m.db.WithContext(ctx).Model(&models.VideoAnalysis{}).
		Where("analysis_id = ?", analysisID).
		Updates(map[string]interface{}{
			"processing_status":     string(types.StatusProcessing),
			"processing_started_at": &now,
			"error_message":         "",
		}).Error
}

// UpdateTranscription 记录视频存储路径和转写任务名
func (m *MySQL) UpdateTranscription(ctx context.Context, analysisID, storedPath, jobName string) error {
	return m.db.WithContext(ctx).Model(&models.VideoAnalysis{}).
		Where("analysis_id = ?", analysisID).
		Updates(map[string]interface{}{
			"stored_video_path":      storedPath,
			"transcription_job_name": jobName,
		}).Error
}

// SaveAnalysisResult 以事务方式持久化完整分析结果。
// 只有状态为completed的行才会携带analysis_data，不存在部分写入的completed行。
func (m *MySQL) SaveAnalysisResult(ctx context.Context, analysisID string, result *types.VideoAnalysisResult) error {
	analysisData, err := models.ToJSON(result)
	if err != nil {
		return fmt.Errorf("序列化分析结果失败: %w", err)
	}
	skillsDetected, err := models.ToJSON(result.TechnicalSkills)
	if err != nil {
		return fmt.Errorf("序列化技能列表失败: %w", err)
	}
	traits := make([]types.SkillTraits, 0, len(result.TechnicalSkills))
	for _, s := range result.TechnicalSkills {
		traits = append(traits, s.Traits)
	}
	traitsAssessment, err := models.ToJSON(traits)
	if err != nil {
		return fmt.Errorf("序列化技能特征失败: %w", err)
	}
	confidenceScores, err := models.ToJSON(result.CategoryScores)
	if err != nil {
		return fmt.Errorf("序列化类别分数失败: %w", err)
	}

	now := time.Now()
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.VideoAnalysis{}).
			Where("analysis_id = ?", analysisID).
			Updates(map[string]interface{}{
				"processing_status":       string(types.StatusCompleted),
				"processing_completed_at": &now,
				"analysis_data":           analysisData,
				"skills_detected":         skillsDetected,
				"traits_assessment":       traitsAssessment,
				"confidence_scores":       confidenceScores,
				"error_message":           "",
			})
		if res.Error != nil {
			return fmt.Errorf("更新分析记录失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("分析记录 %s 不存在", analysisID)
		}

		if err := tx.Model(&models.AnalysisQueueItem{}).
			Where("video_analysis_id = ? AND status IN ?", analysisID, []string{models.QueueStatusPending, models.QueueStatusSent}).
			Updates(map[string]interface{}{
				"status":       models.QueueStatusCompleted,
				"completed_at": &now,
			}).Error; err != nil {
			return fmt.Errorf("更新调度队列项失败: %w", err)
		}
		return nil
	})
}

// MarkAnalysisFailed 记录失败状态和错误信息，同步标记队列项
func (m *MySQL) MarkAnalysisFailed(ctx context.Context, analysisID string, errMsg string) error {
	now := time.Now()
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.VideoAnalysis{}).
			Where("analysis_id = ?", analysisID).
			Updates(map[string]interface{}{
				"processing_status":       string(types.StatusFailed),
				"processing_completed_at": &now,
				"error_message":           errMsg,
			}).Error; err != nil {
			return fmt.Errorf("标记分析失败状态出错: %w", err)
		}
		if err := tx.Model(&models.AnalysisQueueItem{}).
			Where("video_analysis_id = ? AND status IN ?", analysisID, []string{models.QueueStatusPending, models.QueueStatusSent}).
			Updates(map[string]interface{}{
				"status":        models.QueueStatusFailed,
				"error_details": errMsg,
			}).Error; err != nil {
			return fmt.Errorf("标记队列项失败状态出错: %w", err)
		}
		return nil
	})
}

// GetAnalysisByID 获取单条分析记录
func (m *MySQL) GetAnalysisByID(ctx context.Context, analysisID string) (*models.VideoAnalysis, error) {
	var analysis models.VideoAnalysis
	err := m.db.WithContext(ctx).First(&analysis, "analysis_id = ?", analysisID).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// ListCompletedAnalysesByCandidate 获取候选人已完成的分析记录，按创建时间倒序
func (m *MySQL) ListCompletedAnalysesByCandidate(ctx context.Context, candidateID string) ([]models.VideoAnalysis, error) {
	var analyses []models.VideoAnalysis
	err := m.db.WithContext(ctx).
		Where("candidate_id = ? AND processing_status = ?", candidateID, string(types.StatusCompleted)).
		Order("created_at desc").
		Find(&analyses).Error
	if err != nil {
		return nil, fmt.Errorf("查询候选人分析历史失败: %w", err)
	}
	return analyses, nil
}

// ResetStuckAnalyses 将卡在processing超过cutoff的记录重置为pending并重新入队。
// 供运维修复工具使用，返回被重置的记录数。
func (m *MySQL) ResetStuckAnalyses(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stuck []models.VideoAnalysis
		if err := tx.Where("processing_status = ? AND processing_started_at < ?", string(types.StatusProcessing), cutoff).
			Find(&stuck).Error; err != nil {
			return err
		}
		for _, a := range stuck {
			if err := tx.Model(&models.VideoAnalysis{}).
				Where("analysis_id = ?", a.AnalysisID).
				Update("processing_status", string(types.StatusPending)).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.AnalysisQueueItem{}).
				Where("video_analysis_id = ?", a.AnalysisID).
				Updates(map[string]interface{}{
					"status":        models.QueueStatusPending,
					"scheduled_for": time.Now(),
				}).Error; err != nil {
				return err
			}
		}
		affected = int64(len(stuck))
		return nil
	})
	return affected, err
}
