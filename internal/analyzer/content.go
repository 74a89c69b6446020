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

// ContentAnalyzer 封装内容分析阶段的LLM调用和Prompt逻辑。
// 评估视频质量、性格洞察和关键话题。
type ContentAnalyzer struct {
	llmModel       model.ChatModel
	promptTemplate string
}

// ContentAnalyzerOption 内容分析器的配置选项
type ContentAnalyzerOption func(*ContentAnalyzer)

// WithContentPromptTemplate 设置自定义提示词模板
func WithContentPromptTemplate(template string) ContentAnalyzerOption {
	return func(a *ContentAnalyzer) {
		if template != "" {
			a.promptTemplate = template
		}
	}
}

// NewContentAnalyzer 创建一个新的内容分析器实例
func NewContentAnalyzer(llmModel model.ChatModel, options ...ContentAnalyzerOption) *ContentAnalyzer {
	a := &ContentAnalyzer{
		llmModel: llmModel,
	}

	a.generatePromptTemplate()

	for _, opt := range options {
		opt(a)
	}

	return a
}

// generatePromptTemplate 内部方法，生成内容分析的Prompt模板
func (a *ContentAnalyzer) generatePromptTemplate() {
	a.promptTemplate = `Analyze this video transcript for a candidate's CV video. Provide detailed insights on:

1. Video Quality Assessment (audio clarity, engagement, pacing, structure)
2. Key Topics and Themes mentioned
3. Personality Insights based on communication style
4. Communication Effectiveness

Video Details:
- Title: %s
- Category: %s
- Duration: %.0f seconds
- Industry Context: %s

Transcript: "%s"

Please provide analysis in the following JSON format:
{
  "videoQuality": {
    "audioClarity": <score 0-100>,
    "visualQuality": <score 0-100>,
    "engagement": <score 0-100>,
    "pacing": <score 0-100>,
    "structure": <score 0-100>,
    "accessibility": {
      "hasSubtitles": <boolean>,
      "audioLevel": <score 0-100>,
      "visualContrast": <score 0-100>
    }
  },
  "personalityInsights": {
    "traits": {
      "openness": <score 0-100>,
      "conscientiousness": <score 0-100>,
      "extraversion": <score 0-100>,
      "agreeableness": <score 0-100>,
      "neuroticism": <score 0-100>
    },
    "workStyle": {
      "collaborative": <score 0-100>,
      "independent": <score 0-100>,
      "detailOriented": <score 0-100>,
      "bigPicture": <score 0-100>
    },
    "motivators": [<array of key motivators>],
    "communicationStyle": "<analytical|direct|diplomatic|expressive>"
  },
  "keyTopics": [
    {
      "topic": "<topic name>",
      "relevance": <score 0-100>,
      "mentions": <count>,
      "context": [<array of context phrases>]
    }
  ]
}

Provide only the JSON response, no additional text.`
}

// Analyze 执行内容分析。返回的bool表示结果是否为降级兜底值：
// 模型输出无法解析为合法JSON时返回默认结果并置true，不中断流水线。
// 模型调用本身失败时返回错误，由调用方决定降级或终止。
func (a *ContentAnalyzer) Analyze(ctx context.Context, transcript *types.Transcript, req *types.AnalysisRequest) (*types.ContentAnalysis, bool, error) {
	if a.llmModel == nil {
		return nil, false, fmt.Errorf("ContentAnalyzer: llmModel未初始化")
	}

	industryContext := req.AnalysisOptions.IndustryContext
	if industryContext == "" {
		industryContext = "general"
	}

	prompt := fmt.Sprintf(a.promptTemplate,
		req.VideoMetadata.Title,
		req.VideoMetadata.Category,
		req.VideoMetadata.Duration,
		industryContext,
		transcript.Text,
	)

	systemMsg := einoschema.SystemMessage("You are an expert CV video analyst. You respond only with valid JSON.")
	userMsg := einoschema.UserMessage(prompt)

	response, err := a.llmModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
	if err != nil {
		return nil, false, fmt.Errorf("ContentAnalyzer: LLM调用失败: %w", err)
	}

	if response == nil || response.Content == "" {
		logger.Warn().Msg("内容分析返回空响应，使用兜底结果")
		return DefaultContentAnalysis(), true, nil
	}

	jsonStr := extractJSONObject(response.Content)
	if jsonStr == "" {
		logger.Warn().Str("response", response.Content).Msg("内容分析响应中未找到JSON，使用兜底结果")
		return DefaultContentAnalysis(), true, nil
	}

	var result types.ContentAnalysis
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		logger.Warn().Err(err).Msg("内容分析JSON解析失败，使用兜底结果")
		return DefaultContentAnalysis(), true, nil
	}

	// 沟通风格取值不合法时回退到analytical，不因单个字段作废整个结果
	if !result.PersonalityInsights.CommunicationStyle.Valid() {
		result.PersonalityInsights.CommunicationStyle = types.CommunicationAnalytical
	}

	return &result, false, nil
}
