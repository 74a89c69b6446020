package processor

import (
	"context"

	"reelcv-ai-go/internal/transcribe"
	"reelcv-ai-go/internal/types"
)

// 流水线对外部依赖只声明自己用到的最小接口，
// 具体实现由storage、transcribe、analyzer等包提供。

// VideoStore 视频和转写产物的对象存储
type VideoStore interface {
	// EnsureVideoStored 保证视频在对象存储中，返回存储后的定位符
	EnsureVideoStored(ctx context.Context, videoURL, candidateID string) (string, error)

	// GetTranscriptResult 读取转写结果JSON
	GetTranscriptResult(ctx context.Context, objectKey string) ([]byte, error)
}

// Transcriber 转写任务生命周期管理
type Transcriber interface {
	StartJob(ctx context.Context, candidateID, mediaURI string) (string, error)
	WaitForCompletion(ctx context.Context, jobName string) (*transcribe.JobStatus, error)
}

// ContentAnalyzer 内容分析阶段
type ContentAnalyzer interface {
	Analyze(ctx context.Context, transcript *types.Transcript, req *types.AnalysisRequest) (*types.ContentAnalysis, bool, error)
}

// TechnicalAnalyzer 技术技能分析阶段
type TechnicalAnalyzer interface {
	Analyze(ctx context.Context, transcript *types.Transcript, req *types.AnalysisRequest) ([]types.TechnicalSkillAnalysis, bool, error)
}

// SoftSkillAnalyzer 软技能分析阶段
type SoftSkillAnalyzer interface {
	Analyze(ctx context.Context, transcript *types.Transcript) (*types.SoftSkillAnalysis, bool, error)
}

// RecommendationGenerator 改进建议生成阶段
type RecommendationGenerator interface {
	Generate(ctx context.Context, content *types.ContentAnalysis, technical []types.TechnicalSkillAnalysis, softSkills *types.SoftSkillAnalysis) ([]types.Recommendation, bool, error)
}

// BenchmarkProvider 行业基准数据来源
type BenchmarkProvider interface {
	GetBenchmark(ctx context.Context, technical []types.TechnicalSkillAnalysis, metadata *types.VideoMetadata) (*types.IndustryBenchmark, error)
}

// AnalysisDB 分析记录的持久化
type AnalysisDB interface {
	MarkAnalysisProcessing(ctx context.Context, analysisID string) error
	UpdateTranscription(ctx context.Context, analysisID, storedPath, jobName string) error
	SaveAnalysisResult(ctx context.Context, analysisID string, result *types.VideoAnalysisResult) error
	MarkAnalysisFailed(ctx context.Context, analysisID string, errMsg string) error
}

// ProgressSink 进度快照和结果缓存的写入端
type ProgressSink interface {
	SetProgress(ctx context.Context, snapshot *types.ProgressSnapshot) error
	CacheAnalysisResult(ctx context.Context, analysisID string, result *types.VideoAnalysisResult) error
}
