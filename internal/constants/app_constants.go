package constants

import "time"

const (
	// Application-level constants
	DefaultPipelineVer = "1.0" // 流水线版本，写入分析记录便于追溯

	// 转写任务相关常量
	TranscriptionJobPrefix = "transcription" // 任务名前缀: transcription_{candidateId}_{timestamp}

	// 缓存相关常量
	ResultCacheDuration   = 24 * time.Hour // 完成结果的Redis缓存时长
	ProgressCacheDuration = 24 * time.Hour // 进度快照的Redis缓存时长

	// 队列调度常量
	DefaultQueuePriority = 5 // analysis_queue默认优先级
)
