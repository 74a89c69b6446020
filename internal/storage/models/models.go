package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// VideoAnalysis 视频分析记录主表
// analysis_data保存完整的VideoAnalysisResult，其余JSON列为便于查询的冗余投影
type VideoAnalysis struct {
	AnalysisID            string         `gorm:"type:char(36);primaryKey"`
	VideoID               string         `gorm:"type:varchar(255);not null;index:idx_va_video_id"`
	CandidateID           string         `gorm:"type:char(36);not null;index:idx_va_candidate_id"`
	VideoURL              string         `gorm:"type:varchar(1024)"`
	StoredVideoPath       string         `gorm:"type:varchar(1024)"` // 对象存储中的实际位置
	TranscriptionJobName  string         `gorm:"type:varchar(255)"`
	ProcessingStatus      string         `gorm:"type:varchar(50);default:'pending';index:idx_va_processing_status"`
	ProcessingStartedAt   *time.Time     `gorm:"type:datetime(6)"`
	ProcessingCompletedAt *time.Time     `gorm:"type:datetime(6)"`
	AnalysisData          datatypes.JSON `gorm:"type:json"`
	SkillsDetected        datatypes.JSON `gorm:"type:json"`
	TraitsAssessment      datatypes.JSON `gorm:"type:json"`
	ConfidenceScores      datatypes.JSON `gorm:"type:json"`
	ErrorMessage          string         `gorm:"type:text"`
	PipelineVersion       string         `gorm:"type:varchar(50)"`
	CreatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_va_created_at"`
	UpdatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (VideoAnalysis) TableName() string {
	return "video_analyses"
}

// AnalysisQueueItem 分析任务调度表
// 由中继服务轮询PENDING行并投递到消息队列，实现可靠的异步派发
type AnalysisQueueItem struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement"`
	VideoAnalysisID string         `gorm:"type:char(36);not null;index:idx_aq_video_analysis_id"`
	Priority        int            `gorm:"default:5"`
	ScheduledFor    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	Payload         datatypes.JSON `gorm:"type:json"` // 原始AnalysisRequest，供消费者重放
	Status          string         `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_aq_status_scheduled"`
	RetryCount      int            `gorm:"default:0"`
	ErrorDetails    string         `gorm:"type:text"`
	CompletedAt     *time.Time     `gorm:"type:datetime(6)"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_aq_status_scheduled,sort:asc"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	VideoAnalysis *VideoAnalysis `gorm:"foreignKey:VideoAnalysisID;references:AnalysisID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (AnalysisQueueItem) TableName() string {
	return "analysis_queue"
}

// 队列项状态常量
const (
	QueueStatusPending   = "PENDING"
	QueueStatusSent      = "SENT"
	QueueStatusCompleted = "COMPLETED"
	QueueStatusFailed    = "FAILED"
)

// StringToJSON Helper function to convert string to datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}

// ToJSON Helper function to marshal any value to datatypes.JSON
func ToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
