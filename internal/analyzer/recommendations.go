package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"reelcv-ai-go/internal/logger"
	"reelcv-ai-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// RecommendationGenerator 封装改进建议生成阶段的LLM调用和Prompt逻辑。
// 输入为前序三个分析阶段的汇总，而不是原始转写文本。
type RecommendationGenerator struct {
	llmModel       model.ChatModel
	promptTemplate string
}

// RecommendationGeneratorOption 建议生成器的配置选项
type RecommendationGeneratorOption func(*RecommendationGenerator)

// WithRecommendationPromptTemplate 设置自定义提示词模板
func WithRecommendationPromptTemplate(template string) RecommendationGeneratorOption {
	return func(g *RecommendationGenerator) {
		if template != "" {
			g.promptTemplate = template
		}
	}
}

// NewRecommendationGenerator 创建一个新的建议生成器实例
func NewRecommendationGenerator(llmModel model.ChatModel, options ...RecommendationGeneratorOption) *RecommendationGenerator {
	g := &RecommendationGenerator{
		llmModel: llmModel,
	}

	g.generatePromptTemplate()

	for _, opt := range options {
		opt(g)
	}

	return g
}

// generatePromptTemplate 内部方法，生成建议生成的Prompt模板
func (g *RecommendationGenerator) generatePromptTemplate() {
	g.promptTemplate = `Based on the video analysis results, generate specific, actionable recommendations for improvement:

Content Analysis Summary:
- Video Quality: %s
- Key Topics: %s

Technical Skills Summary:
- Skills Count: %d
- Average Confidence: %.1f

Soft Skills Summary:
- Communication Average: %.1f
- Leadership Average: %.1f

Generate 3-5 recommendations in these categories:
1. Content improvements
2. Technical skill development
3. Presentation enhancement
4. Career development

Return JSON array format:
[
  {
    "type": "<content|technical|presentation|career>",
    "priority": "<high|medium|low>",
    "title": "<recommendation title>",
    "description": "<detailed description>",
    "actionItems": [<array of specific action items>]
  }
]

Provide only the JSON array, no additional text.`
}

// Generate 基于前序分析结果生成改进建议。返回的bool表示结果是否为降级兜底值。
func (g *RecommendationGenerator) Generate(
	ctx context.Context,
	content *types.ContentAnalysis,
	technical []types.TechnicalSkillAnalysis,
	softSkills *types.SoftSkillAnalysis,
) ([]types.Recommendation, bool, error) {
	if g.llmModel == nil {
		return nil, false, fmt.Errorf("RecommendationGenerator: llmModel未初始化")
	}

	videoQualityJSON, err := json.Marshal(content.VideoQuality)
	if err != nil {
		return nil, false, fmt.Errorf("RecommendationGenerator: 序列化视频质量失败: %w", err)
	}
	keyTopicsJSON, err := json.Marshal(content.KeyTopics)
	if err != nil {
		return nil, false, fmt.Errorf("RecommendationGenerator: 序列化关键话题失败: %w", err)
	}

	avgConfidence := 0.0
	if len(technical) > 0 {
		for _, s := range technical {
			avgConfidence += s.Confidence
		}
		avgConfidence /= float64(len(technical))
	}

	comm := softSkills.Communication
	communicationAvg := (comm.Clarity + comm.Confidence + comm.Engagement + comm.Articulation) / 4
	lead := softSkills.Leadership
	leadershipAvg := (lead.Initiative + lead.DecisionMaking + lead.Teamwork + lead.Mentoring) / 4

	prompt := fmt.Sprintf(g.promptTemplate,
		string(videoQualityJSON),
		string(keyTopicsJSON),
		len(technical),
		avgConfidence,
		communicationAvg,
		leadershipAvg,
	)

	systemMsg := einoschema.SystemMessage("You are an expert career coach. You respond only with valid JSON.")
	userMsg := einoschema.UserMessage(prompt)

	response, err := g.llmModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
	if err != nil {
		return nil, false, fmt.Errorf("RecommendationGenerator: LLM调用失败: %w", err)
	}

	if response == nil || response.Content == "" {
		logger.Warn().Msg("建议生成返回空响应，使用兜底结果")
		return DefaultRecommendations(), true, nil
	}

	jsonStr := extractJSONArray(response.Content)
	if jsonStr == "" {
		logger.Warn().Str("response", response.Content).Msg("建议响应中未找到JSON数组，使用兜底结果")
		return DefaultRecommendations(), true, nil
	}

	var recommendations []types.Recommendation
	if err := json.Unmarshal([]byte(jsonStr), &recommendations); err != nil {
		logger.Warn().Err(err).Msg("建议JSON解析失败，使用兜底结果")
		return DefaultRecommendations(), true, nil
	}

	if len(recommendations) == 0 {
		return DefaultRecommendations(), true, nil
	}

	// 类型或优先级取值不合法时回退到保守默认值
	for i := range recommendations {
		if !recommendations[i].Type.Valid() {
			recommendations[i].Type = types.RecommendationContent
		}
		if !recommendations[i].Priority.Valid() {
			recommendations[i].Priority = types.PriorityMedium
		}
	}

	return recommendations, false, nil
}
