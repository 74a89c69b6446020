package relay

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"reelcv-ai-go/internal/config"
	"reelcv-ai-go/internal/logger"
	"reelcv-ai-go/internal/storage"
	"reelcv-ai-go/internal/storage/models"
)

const (
	defaultPollingInterval = 5 * time.Second // 轮询analysis_queue表的间隔
	defaultBatchSize       = 10              // 每次轮询处理的批量大小
	maxRetryCount          = 5               // 投递失败的最大重试次数
)

// MessageRelay 轮询analysis_queue表中的PENDING行并投递到消息队列。
// 数据库行与消息投递走同一事务边界，保证任务创建和派发的最终一致。
type MessageRelay struct {
	db              *gorm.DB
	publisher       *storage.RabbitMQ
	exchange        string
	routingKey      string
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	tracer          trace.Tracer
}

// RelayOption 中继服务选项
type RelayOption func(*MessageRelay)

// WithPollingInterval 设置轮询间隔
func WithPollingInterval(interval time.Duration) RelayOption {
	return func(r *MessageRelay) {
		if interval > 0 {
			r.pollingInterval = interval
		}
	}
}

// WithBatchSize 设置批量大小
func WithBatchSize(size int) RelayOption {
	return func(r *MessageRelay) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

// NewMessageRelay 创建消息中继服务
func NewMessageRelay(db *gorm.DB, publisher *storage.RabbitMQ, cfg *config.RabbitMQConfig, opts ...RelayOption) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		exchange:        cfg.AnalysisEventsExchange,
		routingKey:      cfg.AnalysisTaskRoutingKey,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("reelcv-ai-go/relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 启动后台轮询
func (r *MessageRelay) Start() {
	logger.Info().Dur("interval", r.pollingInterval).Msg("消息中继服务启动")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		for {
			select {
			case <-r.done:
				ticker.Stop()
				logger.Info().Msg("消息中继服务已停止")
				return
			case <-ticker.C:
				if err := r.processPendingItems(context.Background()); err != nil {
					logger.Error().Err(err).Msg("处理待派发任务失败")
				}
			}
		}
	}()
}

// Stop 停止轮询
func (r *MessageRelay) Stop() {
	close(r.done)
}

// processPendingItems 取一批PENDING队列项并投递。
// FOR UPDATE SKIP LOCKED 允许多实例水平扩展，已被锁定的行交由其他实例处理。
func (r *MessageRelay) processPendingItems(ctx context.Context) error {
	var items []models.AnalysisQueueItem

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Preload("VideoAnalysis").
		Where("status = ? AND scheduled_for <= ?", models.QueueStatusPending, time.Now()).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&items).Error
	if err != nil {
		return err
	}

	// 空轮询不创建Span
	if len(items) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "relay.ProcessBatch",
		trace.WithAttributes(
			attribute.Int("messaging.batch.message_count", len(items)),
		),
	)
	defer span.End()

	for i := range items {
		item := &items[i]
		task := r.buildTaskMessage(item)

		err := r.publisher.PublishJSON(ctx, r.exchange, r.routingKey, task, true)
		if err != nil {
			logger.Warn().Err(err).
				Uint64("queue_item_id", item.ID).
				Str("analysis_id", item.VideoAnalysisID).
				Int("retry_count", item.RetryCount+1).
				Msg("投递分析任务失败")
			item.RetryCount++
			item.ErrorDetails = err.Error()
			if item.RetryCount >= maxRetryCount {
				item.Status = models.QueueStatusFailed
			}
		} else {
			item.Status = models.QueueStatusSent
			item.ErrorDetails = ""
		}

		if err := tx.Save(item).Error; err != nil {
			// 更新失败回滚整个事务，本批次在下次轮询中重新拾取
			return err
		}
	}

	return tx.Commit().Error
}

// buildTaskMessage 由队列项和关联的分析记录组装任务消息
func (r *MessageRelay) buildTaskMessage(item *models.AnalysisQueueItem) *storage.AnalysisTaskMessage {
	task := &storage.AnalysisTaskMessage{
		AnalysisID:  item.VideoAnalysisID,
		Priority:    item.Priority,
		EnqueuedAt:  time.Now(),
		RequestJSON: item.Payload,
		TaskID:      item.VideoAnalysisID,
	}
	if item.VideoAnalysis != nil {
		task.VideoID = item.VideoAnalysis.VideoID
		task.CandidateID = item.VideoAnalysis.CandidateID
		task.VideoURL = item.VideoAnalysis.VideoURL
		task.UploadTime = item.VideoAnalysis.CreatedAt.Unix()
	}
	return task
}
