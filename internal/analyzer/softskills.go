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

// SoftSkillAnalyzer 封装软技能分析阶段的LLM调用和Prompt逻辑
type SoftSkillAnalyzer struct {
	llmModel       model.ChatModel
	promptTemplate string
}

// SoftSkillAnalyzerOption 软技能分析器的配置选项
type SoftSkillAnalyzerOption func(*SoftSkillAnalyzer)

// WithSoftSkillPromptTemplate 设置自定义提示词模板
func WithSoftSkillPromptTemplate(template string) SoftSkillAnalyzerOption {
	return func(a *SoftSkillAnalyzer) {
		if template != "" {
			a.promptTemplate = template
		}
	}
}

// NewSoftSkillAnalyzer 创建一个新的软技能分析器实例
func NewSoftSkillAnalyzer(llmModel model.ChatModel, options ...SoftSkillAnalyzerOption) *SoftSkillAnalyzer {
	a := &SoftSkillAnalyzer{
		llmModel: llmModel,
	}

	a.generatePromptTemplate()

	for _, opt := range options {
		opt(a)
	}

	return a
}

// generatePromptTemplate 内部方法，生成软技能分析的Prompt模板
func (a *SoftSkillAnalyzer) generatePromptTemplate() {
	a.promptTemplate = `Analyze this transcript for soft skills and personality traits:

1. Communication skills (clarity, confidence, engagement, articulation)
2. Leadership indicators (initiative, decision-making, teamwork, mentoring)
3. Problem-solving approach (analytical thinking, creativity, systematic approach, adaptability)
4. Professionalism (presentation, time management, reliability, ethics)

Transcript: "%s"

Provide detailed scores (0-100) for each dimension with evidence.

Return JSON format:
{
  "communication": {
    "clarity": <0-100>,
    "confidence": <0-100>,
    "engagement": <0-100>,
    "articulation": <0-100>
  },
  "leadership": {
    "initiative": <0-100>,
    "decisionMaking": <0-100>,
    "teamwork": <0-100>,
    "mentoring": <0-100>
  },
  "problemSolving": {
    "analyticalThinking": <0-100>,
    "creativity": <0-100>,
    "systematicApproach": <0-100>,
    "adaptability": <0-100>
  },
  "professionalism": {
    "presentation": <0-100>,
    "timeManagement": <0-100>,
    "reliability": <0-100>,
    "ethics": <0-100>
  }
}

Provide only the JSON response, no additional text.`
}

// Analyze 执行软技能分析。返回的bool表示结果是否为降级兜底值。
func (a *SoftSkillAnalyzer) Analyze(ctx context.Context, transcript *types.Transcript) (*types.SoftSkillAnalysis, bool, error) {
	if a.llmModel == nil {
		return nil, false, fmt.Errorf("SoftSkillAnalyzer: llmModel未初始化")
	}

	prompt := fmt.Sprintf(a.promptTemplate, transcript.Text)

	systemMsg := einoschema.SystemMessage("You are an expert behavioral interviewer. You respond only with valid JSON.")
	userMsg := einoschema.UserMessage(prompt)

	response, err := a.llmModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
	if err != nil {
		return nil, false, fmt.Errorf("SoftSkillAnalyzer: LLM调用失败: %w", err)
	}

	if response == nil || response.Content == "" {
		logger.Warn().Msg("软技能分析返回空响应，使用兜底结果")
		return DefaultSoftSkills(), true, nil
	}

	jsonStr := extractJSONObject(response.Content)
	if jsonStr == "" {
		logger.Warn().Str("response", response.Content).Msg("软技能响应中未找到JSON，使用兜底结果")
		return DefaultSoftSkills(), true, nil
	}

	var result types.SoftSkillAnalysis
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		logger.Warn().Err(err).Msg("软技能JSON解析失败，使用兜底结果")
		return DefaultSoftSkills(), true, nil
	}

	return &result, false, nil
}
