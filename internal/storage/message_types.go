package storage

import "time"

// AnalysisTaskMessage 分析任务消息，由中继服务投递到消息队列，
// 消费者以此为入口执行完整分析流水线
type AnalysisTaskMessage struct {
	// 与数据库表字段一致的主要字段
	AnalysisID  string    `json:"analysis_id"`            // 分析记录主键
	VideoID     string    `json:"video_id"`               // 视频业务ID
	CandidateID string    `json:"candidate_id"`           // 候选人ID
	VideoURL    string    `json:"video_url"`              // 原始视频URL
	Priority    int       `json:"priority,omitempty"`     // 调度优先级
	EnqueuedAt  time.Time `json:"enqueued_at"`            // 入队时间
	RequestJSON []byte    `json:"request_json,omitempty"` // 原始AnalysisRequest，供消费者重放完整选项

	// 兼容性字段 (可选)
	TaskID     string `json:"task_id,omitempty"`     // 与AnalysisID同义
	UploadTime int64  `json:"upload_time,omitempty"` // Unix时间戳
}

// ProgressEventMessage 进度事件消息，分析过程中的阶段性通知。
// 当前仅写入Redis快照，保留消息结构便于后续接入webhook推送。
type ProgressEventMessage struct {
	AnalysisID  string `json:"analysis_id"`
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step"`
	Stage       string `json:"stage"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}
