package scoring

import (
	"math"

	"reelcv-ai-go/internal/types"
)

// 技能或话题缺失时的保底分
const defaultCategoryScore = 70.0

// Calculate 根据三个分析阶段的输出计算类别分数和总分。
// 纯函数，相同输入必定得到相同输出。
func Calculate(
	technical []types.TechnicalSkillAnalysis,
	softSkills *types.SoftSkillAnalysis,
	content *types.ContentAnalysis,
) (overall int, categories types.CategoryScores) {
	technicalAvg := defaultCategoryScore
	if len(technical) > 0 {
		sum := 0.0
		for _, s := range technical {
			sum += s.Confidence
		}
		technicalAvg = sum / float64(len(technical))
	}

	comm := softSkills.Communication
	communicationAvg := (comm.Clarity + comm.Confidence + comm.Engagement + comm.Articulation) / 4

	presentationAvg := content.VideoQuality.Engagement

	contentAvg := defaultCategoryScore
	if len(content.KeyTopics) > 0 {
		sum := 0.0
		for _, topic := range content.KeyTopics {
			sum += topic.Relevance
		}
		contentAvg = sum / float64(len(content.KeyTopics))
	}

	overall = int(math.Round((technicalAvg + communicationAvg + presentationAvg + contentAvg) / 4))
	categories = types.CategoryScores{
		Technical:     int(math.Round(technicalAvg)),
		Communication: int(math.Round(communicationAvg)),
		Presentation:  int(math.Round(presentationAvg)),
		Content:       int(math.Round(contentAvg)),
	}
	return overall, categories
}
