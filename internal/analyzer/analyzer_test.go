package analyzer

import (
	"context"
	"errors"
	"testing"

	"reelcv-ai-go/internal/agent"
	"reelcv-ai-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTranscript() *types.Transcript {
	return &types.Transcript{
		Text:       "I have five years of experience with Go and distributed systems.",
		Confidence: 0.95,
	}
}

func testRequest() *types.AnalysisRequest {
	return &types.AnalysisRequest{
		VideoURL: "http://example.com/video.mp4",
		VideoMetadata: types.VideoMetadata{
			Title:       "Introduction",
			Category:    types.VideoCategoryIntroduction,
			Duration:    120,
			CandidateID: "cand-1",
		},
		AnalysisOptions: types.AnalysisOptions{
			FocusAreas:      []string{"backend"},
			IndustryContext: "software-development",
		},
	}
}

// TestExtractJSONObject 测试JSON对象提取
func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSONObject(`prefix {"a":1} suffix`))
	assert.Equal(t, `{"a":{"b":2}}`, extractJSONObject(`{"a":{"b":2}}`), "嵌套对象应该完整提取")
	assert.Equal(t, "", extractJSONObject("no json here"))
	assert.Equal(t, "", extractJSONObject(`{"unterminated":`))
}

// TestExtractJSONArray 测试JSON数组提取
func TestExtractJSONArray(t *testing.T) {
	assert.Equal(t, `[1,2,3]`, extractJSONArray("here: [1,2,3] done"))
	assert.Equal(t, `[[1],[2]]`, extractJSONArray(`[[1],[2]]`))
	assert.Equal(t, "", extractJSONArray("nothing"))
}

// TestContentAnalyzer_Analyze 测试内容分析的正常解析
func TestContentAnalyzer_Analyze(t *testing.T) {
	mockResponse := `{
		"videoQuality": {"audioClarity": 90, "visualQuality": 85, "engagement": 80, "pacing": 75, "structure": 88,
			"accessibility": {"hasSubtitles": true, "audioLevel": 90, "visualContrast": 85}},
		"personalityInsights": {
			"traits": {"openness": 70, "conscientiousness": 80, "extraversion": 60, "agreeableness": 75, "neuroticism": 30},
			"workStyle": {"collaborative": 80, "independent": 70, "detailOriented": 85, "bigPicture": 65},
			"motivators": ["Learning"],
			"communicationStyle": "direct"},
		"keyTopics": [{"topic": "Go", "relevance": 95, "mentions": 3, "context": ["backend"]}]
	}`

	a := NewContentAnalyzer(agent.NewMockChatClient(mockResponse, nil))
	result, degraded, err := a.Analyze(context.Background(), testTranscript(), testRequest())
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, 90.0, result.VideoQuality.AudioClarity)
	assert.Equal(t, types.CommunicationDirect, result.PersonalityInsights.CommunicationStyle)
	require.Len(t, result.KeyTopics, 1)
	assert.Equal(t, "Go", result.KeyTopics[0].Topic)
}

// TestContentAnalyzer_FallbackOnBadJSON 测试解析失败时降级到兜底结果
func TestContentAnalyzer_FallbackOnBadJSON(t *testing.T) {
	a := NewContentAnalyzer(agent.NewMockChatClient("I cannot produce JSON today.", nil))
	result, degraded, err := a.Analyze(context.Background(), testTranscript(), testRequest())
	require.NoError(t, err, "解析失败不应中断流水线")
	assert.True(t, degraded)
	assert.Equal(t, DefaultContentAnalysis(), result)
}

// TestContentAnalyzer_ErrorOnLLMFailure 测试模型调用失败时返回错误
func TestContentAnalyzer_ErrorOnLLMFailure(t *testing.T) {
	a := NewContentAnalyzer(agent.NewMockChatClient("", errors.New("connection refused")))
	_, _, err := a.Analyze(context.Background(), testTranscript(), testRequest())
	assert.Error(t, err)
}

// TestContentAnalyzer_InvalidCommunicationStyle 测试非法沟通风格回退
func TestContentAnalyzer_InvalidCommunicationStyle(t *testing.T) {
	mockResponse := `{"videoQuality":{},"personalityInsights":{"communicationStyle":"aggressive"},"keyTopics":[]}`
	a := NewContentAnalyzer(agent.NewMockChatClient(mockResponse, nil))
	result, degraded, err := a.Analyze(context.Background(), testTranscript(), testRequest())
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, types.CommunicationAnalytical, result.PersonalityInsights.CommunicationStyle)
}

// TestTechnicalSkillAnalyzer_Analyze 测试技术技能分析的正常解析
func TestTechnicalSkillAnalyzer_Analyze(t *testing.T) {
	mockResponse := `Some preamble.
	[
		{"skill": "Go", "category": "programming", "confidence": 92,
		 "evidence": ["mentioned goroutines"],
		 "traits": {"proficiency": "advanced", "confidence": 92, "practicalApplication": 90,
			"theoreticalKnowledge": 85, "realWorldExperience": 95, "communicationClarity": 88},
		 "demonstrationQuality": {"clarity": 90, "depth": 88, "examples": 85, "problemSolving": 86}},
		{"skill": "", "category": "tool", "confidence": 50}
	]`

	a := NewTechnicalSkillAnalyzer(agent.NewMockChatClient(mockResponse, nil))
	skills, degraded, err := a.Analyze(context.Background(), testTranscript(), testRequest())
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, skills, 1, "空技能名条目应被过滤")
	assert.Equal(t, "Go", skills[0].Skill)
	assert.Equal(t, types.ProficiencyAdvanced, skills[0].Traits.Proficiency)
}

// TestTechnicalSkillAnalyzer_Fallback 测试解析失败时降级
func TestTechnicalSkillAnalyzer_Fallback(t *testing.T) {
	a := NewTechnicalSkillAnalyzer(agent.NewMockChatClient("not a json array", nil))
	skills, degraded, err := a.Analyze(context.Background(), testTranscript(), testRequest())
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, DefaultTechnicalSkills(), skills)
}

// TestSoftSkillAnalyzer_Analyze 测试软技能分析的正常解析
func TestSoftSkillAnalyzer_Analyze(t *testing.T) {
	mockResponse := `{
		"communication": {"clarity": 85, "confidence": 80, "engagement": 75, "articulation": 88},
		"leadership": {"initiative": 70, "decisionMaking": 75, "teamwork": 85, "mentoring": 65},
		"problemSolving": {"analyticalThinking": 90, "creativity": 70, "systematicApproach": 85, "adaptability": 80},
		"professionalism": {"presentation": 85, "timeManagement": 80, "reliability": 90, "ethics": 95}
	}`

	a := NewSoftSkillAnalyzer(agent.NewMockChatClient(mockResponse, nil))
	result, degraded, err := a.Analyze(context.Background(), testTranscript())
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, 85.0, result.Communication.Clarity)
	assert.Equal(t, 95.0, result.Professionalism.Ethics)
}

// TestSoftSkillAnalyzer_Fallback 测试解析失败时降级
func TestSoftSkillAnalyzer_Fallback(t *testing.T) {
	a := NewSoftSkillAnalyzer(agent.NewMockChatClient("garbage", nil))
	result, degraded, err := a.Analyze(context.Background(), testTranscript())
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, DefaultSoftSkills(), result)
}

// TestRecommendationGenerator_Generate 测试建议生成的正常解析
func TestRecommendationGenerator_Generate(t *testing.T) {
	mockResponse := `[
		{"type": "technical", "priority": "high", "title": "Deepen system design knowledge",
		 "description": "Cover more architecture topics", "actionItems": ["Study CAP theorem"]},
		{"type": "bogus-type", "priority": "urgent", "title": "X", "description": "Y", "actionItems": []}
	]`

	g := NewRecommendationGenerator(agent.NewMockChatClient(mockResponse, nil))
	recs, degraded, err := g.Generate(context.Background(),
		DefaultContentAnalysis(), DefaultTechnicalSkills(), DefaultSoftSkills())
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, recs, 2)
	assert.Equal(t, types.RecommendationTechnical, recs[0].Type)
	assert.Equal(t, types.PriorityHigh, recs[0].Priority)
	assert.Equal(t, types.RecommendationContent, recs[1].Type, "非法类型应回退到content")
	assert.Equal(t, types.PriorityMedium, recs[1].Priority, "非法优先级应回退到medium")
}

// TestRecommendationGenerator_Fallback 测试解析失败时降级
func TestRecommendationGenerator_Fallback(t *testing.T) {
	g := NewRecommendationGenerator(agent.NewMockChatClient("no array", nil))
	recs, degraded, err := g.Generate(context.Background(),
		DefaultContentAnalysis(), DefaultTechnicalSkills(), DefaultSoftSkills())
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, DefaultRecommendations(), recs)
}
