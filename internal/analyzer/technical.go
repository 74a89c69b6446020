package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"reelcv-ai-go/internal/logger"
	"reelcv-ai-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// TechnicalSkillAnalyzer 封装技术技能分析阶段的LLM调用和Prompt逻辑
type TechnicalSkillAnalyzer struct {
	llmModel       model.ChatModel
	promptTemplate string
}

// TechnicalSkillAnalyzerOption 技术技能分析器的配置选项
type TechnicalSkillAnalyzerOption func(*TechnicalSkillAnalyzer)

// WithTechnicalPromptTemplate 设置自定义提示词模板
func WithTechnicalPromptTemplate(template string) TechnicalSkillAnalyzerOption {
	return func(a *TechnicalSkillAnalyzer) {
		if template != "" {
			a.promptTemplate = template
		}
	}
}

// NewTechnicalSkillAnalyzer 创建一个新的技术技能分析器实例
func NewTechnicalSkillAnalyzer(llmModel model.ChatModel, options ...TechnicalSkillAnalyzerOption) *TechnicalSkillAnalyzer {
	a := &TechnicalSkillAnalyzer{
		llmModel: llmModel,
	}

	a.generatePromptTemplate()

	for _, opt := range options {
		opt(a)
	}

	return a
}

// generatePromptTemplate 内部方法，生成技术技能分析的Prompt模板
func (a *TechnicalSkillAnalyzer) generatePromptTemplate() {
	a.promptTemplate = `Analyze this transcript for technical skills demonstration. Focus on:

1. Programming languages mentioned/demonstrated
2. Frameworks and technologies discussed
3. Tools and methodologies referenced
4. Code quality indicators
5. Problem-solving approaches
6. Technical depth and understanding

Industry Context: %s
Focus Areas: %s

Transcript: "%s"

For each identified skill, assess:
- Proficiency level (beginner/intermediate/advanced/expert)
- Confidence in explanation (0-100)
- Practical application evidence (0-100)
- Communication clarity (0-100)
- Real-world experience indicators (0-100)

Return JSON array format:
[
  {
    "skill": "<skill name>",
    "category": "<programming|framework|tool|methodology|database|cloud>",
    "confidence": <0-100>,
    "evidence": [<array of evidence phrases>],
    "traits": {
      "proficiency": "<beginner|intermediate|advanced|expert>",
      "confidence": <0-100>,
      "practicalApplication": <0-100>,
      "theoreticalKnowledge": <0-100>,
      "realWorldExperience": <0-100>,
      "communicationClarity": <0-100>
    },
    "demonstrationQuality": {
      "clarity": <0-100>,
      "depth": <0-100>,
      "examples": <0-100>,
      "problemSolving": <0-100>
    }
  }
]

Provide only the JSON array, no additional text.`
}

// Analyze 执行技术技能分析。返回的bool表示结果是否为降级兜底值。
func (a *TechnicalSkillAnalyzer) Analyze(ctx context.Context, transcript *types.Transcript, req *types.AnalysisRequest) ([]types.TechnicalSkillAnalysis, bool, error) {
	if a.llmModel == nil {
		return nil, false, fmt.Errorf("TechnicalSkillAnalyzer: llmModel未初始化")
	}

	industryContext := req.AnalysisOptions.IndustryContext
	if industryContext == "" {
		industryContext = "software-development"
	}

	prompt := fmt.Sprintf(a.promptTemplate,
		industryContext,
		strings.Join(req.AnalysisOptions.FocusAreas, ", "),
		transcript.Text,
	)

	systemMsg := einoschema.SystemMessage("You are an expert technical interviewer. You respond only with valid JSON.")
	userMsg := einoschema.UserMessage(prompt)

	response, err := a.llmModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
	if err != nil {
		return nil, false, fmt.Errorf("TechnicalSkillAnalyzer: LLM调用失败: %w", err)
	}

	if response == nil || response.Content == "" {
		logger.Warn().Msg("技术技能分析返回空响应，使用兜底结果")
		return DefaultTechnicalSkills(), true, nil
	}

	jsonStr := extractJSONArray(response.Content)
	if jsonStr == "" {
		logger.Warn().Str("response", response.Content).Msg("技术技能响应中未找到JSON数组，使用兜底结果")
		return DefaultTechnicalSkills(), true, nil
	}

	var skills []types.TechnicalSkillAnalysis
	if err := json.Unmarshal([]byte(jsonStr), &skills); err != nil {
		logger.Warn().Err(err).Msg("技术技能JSON解析失败，使用兜底结果")
		return DefaultTechnicalSkills(), true, nil
	}

	// 过滤掉没有技能名的无效条目
	valid := skills[:0]
	for _, s := range skills {
		if strings.TrimSpace(s.Skill) == "" {
			continue
		}
		if !s.Traits.Proficiency.Valid() {
			s.Traits.Proficiency = types.ProficiencyIntermediate
		}
		valid = append(valid, s)
	}

	if len(valid) == 0 {
		logger.Warn().Msg("技术技能分析未识别出有效技能，使用兜底结果")
		return DefaultTechnicalSkills(), true, nil
	}

	return valid, false, nil
}
