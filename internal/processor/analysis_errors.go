package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrValidationFailed       = errors.New("分析请求校验失败")
	ErrVideoStoreFailed       = errors.New("视频入库失败")
	ErrTranscriptionJobFailed = errors.New("转写任务执行失败")
	ErrTranscriptionTimeout   = errors.New("转写任务等待超时")
	ErrStageTimeout           = errors.New("分析阶段执行超时")
	ErrPersistenceFailed      = errors.New("分析结果持久化失败")
)

// AnalysisProcessError 包含详细错误信息的自定义错误
type AnalysisProcessError struct {
	AnalysisID string
	Op         string
	BaseErr    error
	Detail     string
}

func (e *AnalysisProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, ID:%s): %s", e.BaseErr, e.Op, e.AnalysisID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, ID:%s)", e.BaseErr, e.Op, e.AnalysisID)
}

func (e *AnalysisProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *AnalysisProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewValidationError(analysisID, detail string) error {
	return &AnalysisProcessError{
		AnalysisID: analysisID,
		Op:         "validate",
		BaseErr:    ErrValidationFailed,
		Detail:     detail,
	}
}

func NewVideoStoreError(analysisID, detail string) error {
	return &AnalysisProcessError{
		AnalysisID: analysisID,
		Op:         "store_video",
		BaseErr:    ErrVideoStoreFailed,
		Detail:     detail,
	}
}

func NewTranscriptionJobError(analysisID, detail string) error {
	return &AnalysisProcessError{
		AnalysisID: analysisID,
		Op:         "transcribe",
		BaseErr:    ErrTranscriptionJobFailed,
		Detail:     detail,
	}
}

func NewTranscriptionTimeoutError(analysisID, detail string) error {
	return &AnalysisProcessError{
		AnalysisID: analysisID,
		Op:         "transcribe",
		BaseErr:    ErrTranscriptionTimeout,
		Detail:     detail,
	}
}

func NewStageTimeoutError(analysisID, stage, detail string) error {
	return &AnalysisProcessError{
		AnalysisID: analysisID,
		Op:         stage,
		BaseErr:    ErrStageTimeout,
		Detail:     detail,
	}
}

func NewPersistenceError(analysisID, detail string) error {
	return &AnalysisProcessError{
		AnalysisID: analysisID,
		Op:         "persist",
		BaseErr:    ErrPersistenceFailed,
		Detail:     detail,
	}
}
