package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"reelcv-ai-go/internal/config"
	"reelcv-ai-go/internal/logger"
	"reelcv-ai-go/internal/processor"
	storage2 "reelcv-ai-go/internal/storage"
	"reelcv-ai-go/internal/storage/models"
	"reelcv-ai-go/internal/types"
)

// 消费端处理单个任务时持有的去重锁时长
const analysisLockDuration = 30 * time.Minute

// AnalysisHandler 视频分析处理器，负责接收请求、查询状态和消费分析任务
type AnalysisHandler struct {
	cfg      *config.Config
	storage  *storage2.Storage
	pipeline *processor.VideoProcessor
}

// NewAnalysisHandler 创建视频分析处理器
func NewAnalysisHandler(
	cfg *config.Config,
	storage *storage2.Storage,
	pipeline *processor.VideoProcessor,
) *AnalysisHandler {
	return &AnalysisHandler{
		cfg:      cfg,
		storage:  storage,
		pipeline: pipeline,
	}
}

// AnalysisSubmitRequest 分析提交请求，videoId可选，缺省时使用分析ID
type AnalysisSubmitRequest struct {
	VideoID string `json:"videoId,omitempty"`
	types.AnalysisRequest
}

// AnalysisSubmitResponse 分析提交响应
type AnalysisSubmitResponse struct {
	AnalysisID string `json:"analysisId"`
	Status     string `json:"status"`
}

// AnalysisStatusResponse 分析状态查询响应
type AnalysisStatusResponse struct {
	AnalysisID string                     `json:"analysisId"`
	Status     string                     `json:"status"`
	Error      string                     `json:"error,omitempty"`
	Result     *types.VideoAnalysisResult `json:"result,omitempty"`
}

// CandidateAnalysisSummary 候选人历史分析摘要
type CandidateAnalysisSummary struct {
	AnalysisID   string     `json:"analysisId"`
	VideoID      string     `json:"videoId"`
	OverallScore int        `json:"overallScore"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// HandleSubmitAnalysis 接收分析请求，落库并排队，立即返回分析ID。
// 实际分析由中继服务投递到消息队列后异步执行。
func (h *AnalysisHandler) HandleSubmitAnalysis(ctx context.Context, req *AnalysisSubmitRequest) (*AnalysisSubmitResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("分析请求校验失败: %w", err)
	}

	uuidV7, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成UUIDv7失败: %w", err)
	}
	analysisID := uuidV7.String()

	videoID := req.VideoID
	if videoID == "" {
		videoID = analysisID
	}

	requestPayload, err := json.Marshal(&req.AnalysisRequest)
	if err != nil {
		return nil, fmt.Errorf("序列化分析请求失败: %w", err)
	}

	analysis := &models.VideoAnalysis{
		AnalysisID:       analysisID,
		VideoID:          videoID,
		CandidateID:      req.VideoMetadata.CandidateID,
		VideoURL:         req.VideoURL,
		ProcessingStatus: string(types.StatusPending),
		PipelineVersion:  h.pipeline.Settings.PipelineVersion,
	}

	if err := h.storage.MySQL.CreateVideoAnalysis(ctx, analysis, requestPayload); err != nil {
		return nil, fmt.Errorf("创建分析记录失败: %w", err)
	}

	// 初始进度快照，写入失败不影响提交
	snapshot := &types.ProgressSnapshot{
		AnalysisID:  analysisID,
		Progress:    0,
		CurrentStep: "Queued for analysis",
		Stage:       types.StageIdle,
		UpdatedAt:   time.Now(),
	}
	if err := h.storage.Redis.SetProgress(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("写入初始进度快照失败")
	}

	logger.Info().
		Str("analysis_id", analysisID).
		Str("video_id", videoID).
		Str("candidate_id", req.VideoMetadata.CandidateID).
		Msg("分析请求已排队")

	return &AnalysisSubmitResponse{
		AnalysisID: analysisID,
		Status:     "SUBMITTED_FOR_PROCESSING",
	}, nil
}

// HandleGetAnalysis 查询分析结果，优先走Redis缓存，未命中回源MySQL
func (h *AnalysisHandler) HandleGetAnalysis(ctx context.Context, analysisID string) (*AnalysisStatusResponse, error) {
	cached, err := h.storage.Redis.GetCachedAnalysisResult(ctx, analysisID)
	if err == nil && cached != nil {
		return &AnalysisStatusResponse{
			AnalysisID: analysisID,
			Status:     string(types.StatusCompleted),
			Result:     cached,
		}, nil
	}
	if err != nil && !errors.Is(err, storage2.ErrNotFound) {
		logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("查询结果缓存失败，回源数据库")
	}

	record, err := h.storage.MySQL.GetAnalysisByID(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	resp := &AnalysisStatusResponse{
		AnalysisID: analysisID,
		Status:     record.ProcessingStatus,
		Error:      record.ErrorMessage,
	}

	if record.ProcessingStatus == string(types.StatusCompleted) && len(record.AnalysisData) > 0 {
		var result types.VideoAnalysisResult
		if err := json.Unmarshal(record.AnalysisData, &result); err != nil {
			return nil, fmt.Errorf("反序列化分析结果失败: %w", err)
		}
		resp.Result = &result
	}

	return resp, nil
}

// HandleGetProgress 查询分析进度。
// Redis快照过期后根据数据库状态推算一个终态快照。
func (h *AnalysisHandler) HandleGetProgress(ctx context.Context, analysisID string) (*types.ProgressSnapshot, error) {
	snapshot, err := h.storage.Redis.GetProgress(ctx, analysisID)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, storage2.ErrNotFound) {
		logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("查询进度快照失败，回源数据库")
	}

	record, dbErr := h.storage.MySQL.GetAnalysisByID(ctx, analysisID)
	if dbErr != nil {
		return nil, dbErr
	}

	switch record.ProcessingStatus {
	case string(types.StatusCompleted):
		return &types.ProgressSnapshot{
			AnalysisID:  analysisID,
			Progress:    100,
			CurrentStep: "Analysis complete!",
			Stage:       types.StageComplete,
			UpdatedAt:   record.UpdatedAt,
		}, nil
	case string(types.StatusFailed):
		return &types.ProgressSnapshot{
			AnalysisID:  analysisID,
			CurrentStep: "Analysis failed",
			Stage:       types.StageFailed,
			Error:       record.ErrorMessage,
			UpdatedAt:   record.UpdatedAt,
		}, nil
	case string(types.StatusProcessing):
		return &types.ProgressSnapshot{
			AnalysisID:  analysisID,
			CurrentStep: "Processing...",
			Stage:       types.StageValidating,
			UpdatedAt:   record.UpdatedAt,
		}, nil
	default:
		return &types.ProgressSnapshot{
			AnalysisID:  analysisID,
			CurrentStep: "Queued for analysis",
			Stage:       types.StageIdle,
			UpdatedAt:   record.UpdatedAt,
		}, nil
	}
}

// HandleListCandidateAnalyses 查询候选人的已完成分析列表
func (h *AnalysisHandler) HandleListCandidateAnalyses(ctx context.Context, candidateID string) ([]CandidateAnalysisSummary, error) {
	records, err := h.storage.MySQL.ListCompletedAnalysesByCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	summaries := make([]CandidateAnalysisSummary, 0, len(records))
	for _, record := range records {
		summary := CandidateAnalysisSummary{
			AnalysisID:  record.AnalysisID,
			VideoID:     record.VideoID,
			CompletedAt: record.ProcessingCompletedAt,
		}
		if len(record.AnalysisData) > 0 {
			var result types.VideoAnalysisResult
			if err := json.Unmarshal(record.AnalysisData, &result); err == nil {
				summary.OverallScore = result.OverallScore
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// StartAnalysisTaskConsumer 启动分析任务消费者。
// 每条消息对应一次完整的流水线执行，同一视频通过Redis锁去重。
func (h *AnalysisHandler) StartAnalysisTaskConsumer(ctx context.Context, prefetchCount int) error {
	logger.Info().
		Str("queue", h.cfg.RabbitMQ.AnalysisTaskQueue).
		Int("prefetch_count", prefetchCount).
		Msg("分析任务消费者就绪")

	_, err := h.storage.RabbitMQ.StartConsumer(h.cfg.RabbitMQ.AnalysisTaskQueue, prefetchCount, func(data []byte) bool {
		var message storage2.AnalysisTaskMessage
		if err := json.Unmarshal(data, &message); err != nil {
			// 无法解析的消息重投只会无限循环，直接确认并记录
			logger.Error().Err(err).Msg("解析分析任务消息失败，消息被丢弃")
			return true
		}

		return h.processTaskMessage(ctx, &message)
	})
	if err != nil {
		return fmt.Errorf("启动消费者失败: %w", err)
	}

	return nil
}

// processTaskMessage 执行单条分析任务。
// 返回true表示确认消息；只有瞬时性失败（持久化失败）才重新入队。
func (h *AnalysisHandler) processTaskMessage(ctx context.Context, message *storage2.AnalysisTaskMessage) bool {
	req, err := h.buildRequest(message)
	if err != nil {
		logger.Error().Err(err).Str("analysis_id", message.AnalysisID).Msg("还原分析请求失败，消息被丢弃")
		return true
	}

	lockValue, err := h.storage.Redis.AcquireAnalysisLock(ctx, message.AnalysisID, analysisLockDuration)
	if err != nil {
		logger.Warn().Err(err).Str("analysis_id", message.AnalysisID).Msg("获取分析去重锁失败，稍后重试")
		return false
	}
	if lockValue == "" {
		logger.Info().Str("analysis_id", message.AnalysisID).Msg("分析任务已被其他消费者持有，跳过")
		return true
	}
	defer func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := h.storage.Redis.ReleaseAnalysisLock(bg, message.AnalysisID, lockValue); err != nil {
			logger.Warn().Err(err).Str("analysis_id", message.AnalysisID).Msg("释放分析去重锁失败")
		}
	}()

	task := &processor.AnalysisTask{
		AnalysisID: message.AnalysisID,
		VideoID:    message.VideoID,
		Request:    req,
	}

	if _, err := h.pipeline.Process(ctx, task); err != nil {
		logger.Error().Err(err).Str("analysis_id", message.AnalysisID).Msg("分析任务执行失败")
		// 失败状态已由流水线写入数据库，只有持久化失败值得重投
		return !errors.Is(err, processor.ErrPersistenceFailed)
	}

	return true
}

// buildRequest 从任务消息还原分析请求，优先使用消息携带的原始请求
func (h *AnalysisHandler) buildRequest(message *storage2.AnalysisTaskMessage) (*types.AnalysisRequest, error) {
	if len(message.RequestJSON) > 0 {
		var req types.AnalysisRequest
		if err := json.Unmarshal(message.RequestJSON, &req); err != nil {
			return nil, fmt.Errorf("反序列化原始请求失败: %w", err)
		}
		return &req, nil
	}

	if message.VideoURL == "" || message.CandidateID == "" {
		return nil, fmt.Errorf("任务消息缺少必要字段")
	}
	return &types.AnalysisRequest{
		VideoURL: message.VideoURL,
		VideoMetadata: types.VideoMetadata{
			CandidateID: message.CandidateID,
		},
		AnalysisOptions: types.AnalysisOptions{
			IncludePersonality:  true,
			IncludeBenchmarking: true,
		},
	}, nil
}
