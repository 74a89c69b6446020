package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"reelcv-ai-go/internal/analyzer"
	"reelcv-ai-go/internal/constants"
	"reelcv-ai-go/internal/logger"
	"reelcv-ai-go/internal/scoring"
	"reelcv-ai-go/internal/transcribe"
	"reelcv-ai-go/internal/types"
)

const (
	defaultStageTimeout      = 90 * time.Second
	defaultTranscribeTimeout = 15 * time.Minute
)

// AnalysisTask 一次待执行的分析任务
type AnalysisTask struct {
	AnalysisID string
	VideoID    string
	Request    *types.AnalysisRequest
}

// VideoProcessor 视频分析流水线：
// 校验 → 视频入库 → 转写 → 四个LLM分析阶段 → 评分 → 基准对比 → 持久化。
// 所有依赖通过注入提供，单个LLM阶段失败降级为兜底结果，
// 超时和转写失败则终止整个流水线。
type VideoProcessor struct {
	Components
	Settings Settings
}

// NewVideoProcessor 创建视频分析流水线
func NewVideoProcessor(compOpts []ComponentOpt, setOpts []SettingOpt) (*VideoProcessor, error) {
	p := &VideoProcessor{
		Settings: Settings{
			StageTimeout:            defaultStageTimeout,
			TranscribeTimeout:       defaultTranscribeTimeout,
			ConcurrentSkillAnalysis: true,
			PipelineVersion:         constants.DefaultPipelineVer,
		},
	}

	for _, opt := range compOpts {
		opt(&p.Components)
	}
	for _, opt := range setOpts {
		opt(&p.Settings)
	}

	if p.VideoStore == nil {
		return nil, fmt.Errorf("VideoProcessor: 缺少对象存储组件")
	}
	if p.Transcriber == nil {
		return nil, fmt.Errorf("VideoProcessor: 缺少转写客户端组件")
	}
	if p.ContentAnalyzer == nil || p.TechnicalAnalyzer == nil || p.SoftSkillAnalyzer == nil || p.Recommender == nil {
		return nil, fmt.Errorf("VideoProcessor: 缺少分析器组件")
	}

	return p, nil
}

// Process 执行一次完整的视频分析。
// 返回错误时，失败状态已写入数据库和进度快照。
func (p *VideoProcessor) Process(ctx context.Context, task *AnalysisTask) (*types.VideoAnalysisResult, error) {
	if task == nil || task.AnalysisID == "" {
		return nil, NewValidationError("", "任务不能为空")
	}

	tracker := NewProgressTracker(task.AnalysisID, p.Progress)

	result, err := p.run(ctx, task, tracker)
	if err != nil {
		// 失败登记使用独立上下文，父上下文可能已取消
		bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tracker.Fail(bg, err.Error())
		if p.DB != nil {
			if dbErr := p.DB.MarkAnalysisFailed(bg, task.AnalysisID, err.Error()); dbErr != nil {
				logger.Error().Err(dbErr).Str("analysis_id", task.AnalysisID).Msg("标记分析失败状态出错")
			}
		}
		return nil, err
	}
	return result, nil
}

func (p *VideoProcessor) run(ctx context.Context, task *AnalysisTask, tracker *ProgressTracker) (*types.VideoAnalysisResult, error) {
	startTime := time.Now()
	req := task.Request

	// 阶段1：校验
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracker.Update(ctx, ProgressValidated, "Validating analysis request...", types.StageValidating)

	if req == nil {
		return nil, NewValidationError(task.AnalysisID, "分析请求为空")
	}
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(task.AnalysisID, err.Error())
	}

	if p.DB != nil {
		if err := p.DB.MarkAnalysisProcessing(ctx, task.AnalysisID); err != nil {
			logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("标记处理中状态失败")
		}
	}

	candidateID := req.VideoMetadata.CandidateID

	// 阶段2：视频入库
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracker.Update(ctx, ProgressVideoStored, "Uploading video to object storage...", types.StageUploadingMedia)

	storedPath, err := p.VideoStore.EnsureVideoStored(ctx, req.VideoURL, candidateID)
	if err != nil {
		return nil, NewVideoStoreError(task.AnalysisID, err.Error())
	}
	logger.Info().Str("analysis_id", task.AnalysisID).Str("stored_path", storedPath).Msg("视频已入库")

	// 阶段3：转写
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracker.Update(ctx, ProgressTranscribed, "Transcribing audio...", types.StageTranscribing)

	transcript, transcriptDegraded, jobName, err := p.transcribeVideo(ctx, task, candidateID, storedPath)
	if err != nil {
		return nil, err
	}
	if transcriptDegraded {
		logger.Warn().Str("analysis_id", task.AnalysisID).Msg("转写结果不可用，使用兜底文本降级继续")
	}

	if p.DB != nil && jobName != "" {
		if err := p.DB.UpdateTranscription(ctx, task.AnalysisID, storedPath, jobName); err != nil {
			logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("记录转写任务名失败")
		}
	}

	// 阶段4：内容分析
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracker.Update(ctx, ProgressAnalyzed, "Analyzing content...", types.StageAnalyzingContent)

	content, contentDegraded, err := p.runContentStage(ctx, task, transcript, req)
	if err != nil {
		return nil, err
	}

	// 阶段5/6：技术技能与软技能分析
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracker.Update(ctx, ProgressAnalyzed, "Analyzing technical and soft skills...", types.StageAnalyzingSkills)

	technical, techDegraded, softSkills, softDegraded, err := p.runSkillStages(ctx, task, transcript, req)
	if err != nil {
		return nil, err
	}

	// 阶段7：改进建议
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracker.Update(ctx, ProgressAnalyzed, "Generating recommendations...", types.StageGeneratingRecommendations)

	recommendations, recDegraded, err := p.runRecommendationStage(ctx, task, content, technical, softSkills)
	if err != nil {
		return nil, err
	}

	// 阶段8：评分与基准对比，纯计算不涉及外部调用
	tracker.Update(ctx, ProgressAnalyzed, "Calculating scores...", types.StageScoring)
	overall, categories := scoring.Calculate(technical, softSkills, content)

	var benchmark *types.IndustryBenchmark
	if req.AnalysisOptions.IncludeBenchmarking && p.Benchmark != nil {
		benchmark, err = p.Benchmark.GetBenchmark(ctx, technical, &req.VideoMetadata)
		if err != nil {
			logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("获取行业基准失败，结果中省略基准数据")
			benchmark = nil
		}
	}

	videoID := task.VideoID
	if videoID == "" {
		videoID = candidateID
	}

	result := &types.VideoAnalysisResult{
		ID:                  task.AnalysisID,
		VideoID:             videoID,
		AnalysisDate:        time.Now(),
		ProcessingTime:      math.Round(time.Since(startTime).Seconds()),
		TechnicalSkills:     technical,
		SoftSkills:          *softSkills,
		VideoQuality:        content.VideoQuality,
		PersonalityInsights: content.PersonalityInsights,
		Transcript:          *transcript,
		KeyTopics:           content.KeyTopics,
		Recommendations:     recommendations,
		OverallScore:        overall,
		CategoryScores:      categories,
	}
	if benchmark != nil {
		result.IndustryBenchmark = *benchmark
	}

	if transcriptDegraded || contentDegraded || techDegraded || softDegraded || recDegraded {
		logger.Warn().
			Str("analysis_id", task.AnalysisID).
			Bool("transcript", transcriptDegraded).
			Bool("content", contentDegraded).
			Bool("technical", techDegraded).
			Bool("soft_skills", softDegraded).
			Bool("recommendations", recDegraded).
			Msg("部分阶段以降级模式完成")
	}

	// 阶段9：持久化。完整结果单事务写入，失败时不留下部分完成的记录
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracker.Update(ctx, ProgressRecommended, "Saving analysis results...", types.StagePersisting)

	if p.DB != nil {
		if err := p.DB.SaveAnalysisResult(ctx, task.AnalysisID, result); err != nil {
			return nil, NewPersistenceError(task.AnalysisID, err.Error())
		}
	}

	if p.Progress != nil {
		if err := p.Progress.CacheAnalysisResult(ctx, task.AnalysisID, result); err != nil {
			logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("缓存分析结果失败")
		}
	}

	tracker.Update(ctx, ProgressComplete, "Analysis complete!", types.StageComplete)
	logger.Info().
		Str("analysis_id", task.AnalysisID).
		Int("overall_score", overall).
		Float64("processing_seconds", result.ProcessingTime).
		Msg("视频分析完成")

	return result, nil
}

// transcribeVideo 执行转写阶段。
// 任务失败和等待超时是终止性错误；结果获取或解析失败则降级为兜底文本。
// 返回值依次为转写结果、是否降级、任务名。
func (p *VideoProcessor) transcribeVideo(ctx context.Context, task *AnalysisTask, candidateID, storedPath string) (*types.Transcript, bool, string, error) {
	tctx, cancel := context.WithTimeout(ctx, p.Settings.TranscribeTimeout)
	defer cancel()

	jobName, err := p.Transcriber.StartJob(tctx, candidateID, storedPath)
	if err != nil {
		return nil, false, "", NewTranscriptionJobError(task.AnalysisID, err.Error())
	}

	status, err := p.Transcriber.WaitForCompletion(tctx, jobName)
	if err != nil {
		switch {
		case errors.Is(err, transcribe.ErrJobTimeout):
			return nil, false, jobName, NewTranscriptionTimeoutError(task.AnalysisID, err.Error())
		case errors.Is(err, transcribe.ErrJobFailed):
			return nil, false, jobName, NewTranscriptionJobError(task.AnalysisID, err.Error())
		case ctx.Err() != nil:
			return nil, false, jobName, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, false, jobName, NewTranscriptionTimeoutError(task.AnalysisID, err.Error())
		default:
			return nil, false, jobName, NewTranscriptionJobError(task.AnalysisID, err.Error())
		}
	}

	outputKey := status.OutputKey
	if outputKey == "" {
		outputKey = transcribe.OutputKey(candidateID, jobName)
	}

	raw, err := p.VideoStore.GetTranscriptResult(ctx, outputKey)
	if err != nil {
		logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Str("output_key", outputKey).Msg("读取转写结果失败，降级为兜底文本")
		return transcribe.FallbackTranscript(), true, jobName, nil
	}

	transcript, err := transcribe.ParseResult(raw)
	if err != nil {
		logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("解析转写结果失败，降级为兜底文本")
		return transcribe.FallbackTranscript(), true, jobName, nil
	}

	return transcript, false, jobName, nil
}

// mapStageErr 将阶段错误归类：阶段超时是终止性Timeout错误，
// 父上下文取消原样上抛，其他调用失败由调用方降级处理。
func (p *VideoProcessor) mapStageErr(ctx, sctx context.Context, task *AnalysisTask, stage string, err error) (terminal error, degradable bool) {
	if ctx.Err() != nil {
		return ctx.Err(), false
	}
	if sctx.Err() == context.DeadlineExceeded {
		return NewStageTimeoutError(task.AnalysisID, stage, err.Error()), false
	}
	return nil, true
}

func (p *VideoProcessor) runContentStage(ctx context.Context, task *AnalysisTask, transcript *types.Transcript, req *types.AnalysisRequest) (*types.ContentAnalysis, bool, error) {
	sctx, cancel := context.WithTimeout(ctx, p.Settings.StageTimeout)
	defer cancel()

	content, degraded, err := p.ContentAnalyzer.Analyze(sctx, transcript, req)
	if err != nil {
		if terminal, degradable := p.mapStageErr(ctx, sctx, task, "analyze_content", err); !degradable {
			return nil, false, terminal
		}
		logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("内容分析调用失败，使用兜底结果降级")
		return analyzer.DefaultContentAnalysis(), true, nil
	}
	return content, degraded, nil
}

func (p *VideoProcessor) runTechnicalStage(ctx context.Context, task *AnalysisTask, transcript *types.Transcript, req *types.AnalysisRequest) ([]types.TechnicalSkillAnalysis, bool, error) {
	sctx, cancel := context.WithTimeout(ctx, p.Settings.StageTimeout)
	defer cancel()

	skills, degraded, err := p.TechnicalAnalyzer.Analyze(sctx, transcript, req)
	if err != nil {
		if terminal, degradable := p.mapStageErr(ctx, sctx, task, "analyze_technical_skills", err); !degradable {
			return nil, false, terminal
		}
		logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("技术技能分析调用失败，使用兜底结果降级")
		return analyzer.DefaultTechnicalSkills(), true, nil
	}
	return skills, degraded, nil
}

func (p *VideoProcessor) runSoftSkillStage(ctx context.Context, task *AnalysisTask, transcript *types.Transcript) (*types.SoftSkillAnalysis, bool, error) {
	sctx, cancel := context.WithTimeout(ctx, p.Settings.StageTimeout)
	defer cancel()

	softSkills, degraded, err := p.SoftSkillAnalyzer.Analyze(sctx, transcript)
	if err != nil {
		if terminal, degradable := p.mapStageErr(ctx, sctx, task, "analyze_soft_skills", err); !degradable {
			return nil, false, terminal
		}
		logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("软技能分析调用失败，使用兜底结果降级")
		return analyzer.DefaultSoftSkills(), true, nil
	}
	return softSkills, degraded, nil
}

// runSkillStages 执行技术技能与软技能两个阶段，配置允许时并发执行
func (p *VideoProcessor) runSkillStages(ctx context.Context, task *AnalysisTask, transcript *types.Transcript, req *types.AnalysisRequest) ([]types.TechnicalSkillAnalysis, bool, *types.SoftSkillAnalysis, bool, error) {
	if !p.Settings.ConcurrentSkillAnalysis {
		technical, techDegraded, err := p.runTechnicalStage(ctx, task, transcript, req)
		if err != nil {
			return nil, false, nil, false, err
		}
		softSkills, softDegraded, err := p.runSoftSkillStage(ctx, task, transcript)
		if err != nil {
			return nil, false, nil, false, err
		}
		return technical, techDegraded, softSkills, softDegraded, nil
	}

	var (
		wg           sync.WaitGroup
		technical    []types.TechnicalSkillAnalysis
		techDegraded bool
		techErr      error
		softSkills   *types.SoftSkillAnalysis
		softDegraded bool
		softErr      error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		technical, techDegraded, techErr = p.runTechnicalStage(ctx, task, transcript, req)
	}()
	go func() {
		defer wg.Done()
		softSkills, softDegraded, softErr = p.runSoftSkillStage(ctx, task, transcript)
	}()
	wg.Wait()

	if techErr != nil {
		return nil, false, nil, false, techErr
	}
	if softErr != nil {
		return nil, false, nil, false, softErr
	}
	return technical, techDegraded, softSkills, softDegraded, nil
}

func (p *VideoProcessor) runRecommendationStage(ctx context.Context, task *AnalysisTask, content *types.ContentAnalysis, technical []types.TechnicalSkillAnalysis, softSkills *types.SoftSkillAnalysis) ([]types.Recommendation, bool, error) {
	sctx, cancel := context.WithTimeout(ctx, p.Settings.StageTimeout)
	defer cancel()

	recommendations, degraded, err := p.Recommender.Generate(sctx, content, technical, softSkills)
	if err != nil {
		if terminal, degradable := p.mapStageErr(ctx, sctx, task, "generate_recommendations", err); !degradable {
			return nil, false, terminal
		}
		logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("建议生成调用失败，使用兜底结果降级")
		return analyzer.DefaultRecommendations(), true, nil
	}
	return recommendations, degraded, nil
}
