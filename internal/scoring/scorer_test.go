package scoring

import (
	"context"
	"testing"

	"reelcv-ai-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSoftSkills() *types.SoftSkillAnalysis {
	return &types.SoftSkillAnalysis{
		Communication: types.CommunicationMetrics{Clarity: 80, Confidence: 84, Engagement: 76, Articulation: 80},
	}
}

func sampleContent() *types.ContentAnalysis {
	return &types.ContentAnalysis{
		VideoQuality: types.VideoQualityMetrics{Engagement: 78},
		KeyTopics: []types.KeyTopic{
			{Topic: "Go", Relevance: 90},
			{Topic: "Docker", Relevance: 70},
		},
	}
}

// TestCalculate 测试类别分数和总分计算
func TestCalculate(t *testing.T) {
	technical := []types.TechnicalSkillAnalysis{
		{Skill: "Go", Confidence: 90},
		{Skill: "SQL", Confidence: 70},
	}

	overall, categories := Calculate(technical, sampleSoftSkills(), sampleContent())

	assert.Equal(t, 80, categories.Technical, "技术分应为技能置信度均值")
	assert.Equal(t, 80, categories.Communication, "沟通分应为四项沟通指标均值")
	assert.Equal(t, 78, categories.Presentation, "表现分应取视频互动度")
	assert.Equal(t, 80, categories.Content, "内容分应为话题相关度均值")
	// (80 + 80 + 78 + 80) / 4 = 79.5 → 80
	assert.Equal(t, 80, overall)
}

// TestCalculate_Defaults 测试技能和话题缺失时的保底分
func TestCalculate_Defaults(t *testing.T) {
	content := sampleContent()
	content.KeyTopics = nil

	overall, categories := Calculate(nil, sampleSoftSkills(), content)

	assert.Equal(t, 70, categories.Technical, "无技能时技术分取保底值70")
	assert.Equal(t, 70, categories.Content, "无话题时内容分取保底值70")
	// (70 + 80 + 78 + 70) / 4 = 74.5 → 75 (Round half away from zero)
	assert.Equal(t, 75, overall)
}

// TestCalculate_Deterministic 测试计算的确定性
func TestCalculate_Deterministic(t *testing.T) {
	technical := []types.TechnicalSkillAnalysis{{Skill: "Go", Confidence: 85}}
	o1, c1 := Calculate(technical, sampleSoftSkills(), sampleContent())
	o2, c2 := Calculate(technical, sampleSoftSkills(), sampleContent())
	assert.Equal(t, o1, o2)
	assert.Equal(t, c1, c2)
}

// TestStubBenchmarkProvider 测试基准桩的取值范围和种子确定性
func TestStubBenchmarkProvider(t *testing.T) {
	p := NewStubBenchmarkProvider(42)

	for i := 0; i < 100; i++ {
		b, err := p.GetBenchmark(context.Background(), nil, &types.VideoMetadata{CandidateID: "c"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, b.Percentile, 25)
		assert.LessOrEqual(t, b.Percentile, 95)
		assert.GreaterOrEqual(t, b.SimilarProfiles, 800)
		assert.Less(t, b.SimilarProfiles, 1800)
		assert.NotEmpty(t, b.TopSkills)
		assert.NotEmpty(t, b.ImprovementAreas)
	}

	// 相同种子应该产生相同序列
	p1 := NewStubBenchmarkProvider(7)
	p2 := NewStubBenchmarkProvider(7)
	b1, err := p1.GetBenchmark(context.Background(), nil, nil)
	require.NoError(t, err)
	b2, err := p2.GetBenchmark(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}
