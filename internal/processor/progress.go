package processor

import (
	"context"
	"sync"
	"time"

	"reelcv-ai-go/internal/logger"
	"reelcv-ai-go/internal/types"
)

// 各阶段完成后的进度检查点
const (
	ProgressValidated    = 5
	ProgressVideoStored  = 15
	ProgressTranscribed  = 35
	ProgressAnalyzed     = 60
	ProgressRecommended  = 85
	ProgressComplete     = 100
)

// ProgressTracker 维护单次分析的进度状态并写入ProgressSink。
// 进度单调不减，乱序的回退更新会被忽略。
type ProgressTracker struct {
	analysisID string
	sink       ProgressSink

	mu       sync.Mutex
	progress int
}

// NewProgressTracker 创建进度跟踪器
func NewProgressTracker(analysisID string, sink ProgressSink) *ProgressTracker {
	return &ProgressTracker{
		analysisID: analysisID,
		sink:       sink,
	}
}

// Update 更新进度。低于当前进度的值会被忽略，保证单调性。
// 进度写入失败只记录日志，不影响分析流程。
func (t *ProgressTracker) Update(ctx context.Context, progress int, step string, stage types.AnalysisStage) {
	t.mu.Lock()
	if progress < t.progress {
		t.mu.Unlock()
		return
	}
	t.progress = progress
	t.mu.Unlock()

	if t.sink == nil {
		return
	}

	snapshot := &types.ProgressSnapshot{
		AnalysisID:  t.analysisID,
		Progress:    progress,
		CurrentStep: step,
		Stage:       stage,
		UpdatedAt:   time.Now(),
	}
	if err := t.sink.SetProgress(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Str("analysis_id", t.analysisID).Int("progress", progress).Msg("写入进度快照失败")
	}
}

// Fail 记录失败状态，进度保持在失败时的位置
func (t *ProgressTracker) Fail(ctx context.Context, errMsg string) {
	t.mu.Lock()
	progress := t.progress
	t.mu.Unlock()

	if t.sink == nil {
		return
	}

	snapshot := &types.ProgressSnapshot{
		AnalysisID:  t.analysisID,
		Progress:    progress,
		CurrentStep: "Analysis failed",
		Stage:       types.StageFailed,
		Error:       errMsg,
		UpdatedAt:   time.Now(),
	}
	if err := t.sink.SetProgress(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Str("analysis_id", t.analysisID).Msg("写入失败状态快照失败")
	}
}

// Progress 返回当前进度
func (t *ProgressTracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}
