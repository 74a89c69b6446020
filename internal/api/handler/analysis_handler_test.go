package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage2 "reelcv-ai-go/internal/storage"
	"reelcv-ai-go/internal/types"
)

func TestBuildRequest_FromRequestJSON(t *testing.T) {
	h := &AnalysisHandler{}

	original := types.AnalysisRequest{
		VideoURL: "https://example.com/v.mp4",
		VideoMetadata: types.VideoMetadata{
			Title:       "技能展示",
			Category:    types.VideoCategorySkills,
			CandidateID: "cand-1",
		},
		AnalysisOptions: types.AnalysisOptions{
			IncludeBenchmarking: true,
			IndustryContext:     "fintech",
		},
	}
	raw, err := json.Marshal(&original)
	require.NoError(t, err)

	req, err := h.buildRequest(&storage2.AnalysisTaskMessage{
		AnalysisID:  "a-1",
		RequestJSON: raw,
	})
	require.NoError(t, err)
	assert.Equal(t, original, *req, "原始请求应完整还原")
}

func TestBuildRequest_FromMessageFields(t *testing.T) {
	h := &AnalysisHandler{}

	req, err := h.buildRequest(&storage2.AnalysisTaskMessage{
		AnalysisID:  "a-1",
		VideoURL:    "https://example.com/v.mp4",
		CandidateID: "cand-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v.mp4", req.VideoURL)
	assert.Equal(t, "cand-1", req.VideoMetadata.CandidateID)
	assert.True(t, req.AnalysisOptions.IncludeBenchmarking, "消息未携带原始请求时默认开启基准对比")
	assert.True(t, req.AnalysisOptions.IncludePersonality)
}

func TestBuildRequest_MissingFields(t *testing.T) {
	h := &AnalysisHandler{}

	_, err := h.buildRequest(&storage2.AnalysisTaskMessage{AnalysisID: "a-1"})
	assert.Error(t, err, "缺少必要字段时应返回错误")

	_, err = h.buildRequest(&storage2.AnalysisTaskMessage{
		AnalysisID:  "a-1",
		RequestJSON: []byte("{not json"),
	})
	assert.Error(t, err, "损坏的原始请求应返回错误")
}

func TestAnalysisSubmitRequest_Validate(t *testing.T) {
	req := AnalysisSubmitRequest{
		AnalysisRequest: types.AnalysisRequest{
			VideoURL: "https://example.com/v.mp4",
			VideoMetadata: types.VideoMetadata{
				CandidateID: "cand-1",
			},
		},
	}
	assert.NoError(t, req.Validate())

	req.VideoURL = ""
	assert.Error(t, req.Validate())

	req.VideoURL = "https://example.com/v.mp4"
	req.VideoMetadata.Category = "unknown"
	assert.Error(t, req.Validate())

	req.VideoMetadata.Category = types.VideoCategorySkills
	req.VideoMetadata.Duration = -154
	assert.Error(t, req.Validate(), "负的视频时长应被拒绝")

	req.VideoMetadata.Duration = 0
	assert.NoError(t, req.Validate(), "零时长是合法取值")
}
