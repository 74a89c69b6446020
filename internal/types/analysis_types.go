package types

import (
	"fmt"
	"time"
)

// Proficiency 技能熟练度等级
type Proficiency string

const (
	ProficiencyBeginner     Proficiency = "beginner"
	ProficiencyIntermediate Proficiency = "intermediate"
	ProficiencyAdvanced     Proficiency = "advanced"
	ProficiencyExpert       Proficiency = "expert"
)

// Valid 检查熟练度取值是否合法
func (p Proficiency) Valid() bool {
	switch p {
	case ProficiencyBeginner, ProficiencyIntermediate, ProficiencyAdvanced, ProficiencyExpert:
		return true
	}
	return false
}

// SkillCategory 技术技能类别
type SkillCategory string

const (
	SkillCategoryProgramming SkillCategory = "programming"
	SkillCategoryFramework   SkillCategory = "framework"
	SkillCategoryTool        SkillCategory = "tool"
	SkillCategoryMethodology SkillCategory = "methodology"
	SkillCategoryDatabase    SkillCategory = "database"
	SkillCategoryCloud       SkillCategory = "cloud"
)

// Valid 检查技能类别取值是否合法
func (c SkillCategory) Valid() bool {
	switch c {
	case SkillCategoryProgramming, SkillCategoryFramework, SkillCategoryTool,
		SkillCategoryMethodology, SkillCategoryDatabase, SkillCategoryCloud:
		return true
	}
	return false
}

// RecommendationType 建议类型
type RecommendationType string

const (
	RecommendationContent      RecommendationType = "content"
	RecommendationTechnical    RecommendationType = "technical"
	RecommendationPresentation RecommendationType = "presentation"
	RecommendationCareer       RecommendationType = "career"
)

// Valid 检查建议类型取值是否合法
func (t RecommendationType) Valid() bool {
	switch t {
	case RecommendationContent, RecommendationTechnical, RecommendationPresentation, RecommendationCareer:
		return true
	}
	return false
}

// Priority 建议优先级
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid 检查优先级取值是否合法
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// CommunicationStyle 沟通风格
type CommunicationStyle string

const (
	CommunicationDirect     CommunicationStyle = "direct"
	CommunicationDiplomatic CommunicationStyle = "diplomatic"
	CommunicationAnalytical CommunicationStyle = "analytical"
	CommunicationExpressive CommunicationStyle = "expressive"
)

// Valid 检查沟通风格取值是否合法
func (s CommunicationStyle) Valid() bool {
	switch s {
	case CommunicationDirect, CommunicationDiplomatic, CommunicationAnalytical, CommunicationExpressive:
		return true
	}
	return false
}

// VideoCategory 视频类别
type VideoCategory string

const (
	VideoCategoryIntroduction VideoCategory = "introduction"
	VideoCategorySkills       VideoCategory = "skills"
	VideoCategoryProject      VideoCategory = "project"
	VideoCategoryTestimonial  VideoCategory = "testimonial"
)

// Valid 检查视频类别取值是否合法
func (c VideoCategory) Valid() bool {
	switch c {
	case VideoCategoryIntroduction, VideoCategorySkills, VideoCategoryProject, VideoCategoryTestimonial:
		return true
	}
	return false
}

// ProcessingStatus 分析记录的处理状态
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Valid 检查处理状态取值是否合法
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// AnalysisStage 流水线阶段，状态机按声明顺序推进
type AnalysisStage string

const (
	StageIdle                      AnalysisStage = "idle"
	StageValidating                AnalysisStage = "validating"
	StageUploadingMedia            AnalysisStage = "uploading_media"
	StageTranscribing              AnalysisStage = "transcribing"
	StageAnalyzingContent          AnalysisStage = "analyzing_content"
	StageAnalyzingSkills           AnalysisStage = "analyzing_skills"
	StageAnalyzingSoftSkills       AnalysisStage = "analyzing_soft_skills"
	StageGeneratingRecommendations AnalysisStage = "generating_recommendations"
	StageScoring                   AnalysisStage = "scoring"
	StagePersisting                AnalysisStage = "persisting"
	StageComplete                  AnalysisStage = "complete"
	StageFailed                    AnalysisStage = "failed"
)

// SkillTraits 单项技能的细分特征，分数范围均为0-100
type SkillTraits struct {
	Proficiency          Proficiency `json:"proficiency"`
	Confidence           float64     `json:"confidence"`
	PracticalApplication float64     `json:"practicalApplication"`
	TheoreticalKnowledge float64     `json:"theoreticalKnowledge"`
	RealWorldExperience  float64     `json:"realWorldExperience"`
	CommunicationClarity float64     `json:"communicationClarity"`
}

// CodeQualityMetrics 代码质量细分指标（可选，仅当视频中出现代码演示时产生）
type CodeQualityMetrics struct {
	Structure     float64 `json:"structure"`
	BestPractices float64 `json:"bestPractices"`
	Efficiency    float64 `json:"efficiency"`
	Readability   float64 `json:"readability"`
}

// DemonstrationQuality 技能展示质量
type DemonstrationQuality struct {
	Clarity        float64 `json:"clarity"`
	Depth          float64 `json:"depth"`
	Examples       float64 `json:"examples"`
	ProblemSolving float64 `json:"problemSolving"`
}

// TechnicalSkillAnalysis 单项技术技能的分析结果
type TechnicalSkillAnalysis struct {
	Skill                string               `json:"skill"`
	Category             SkillCategory        `json:"category"`
	Confidence           float64              `json:"confidence"`
	Evidence             []string             `json:"evidence"`
	Traits               SkillTraits          `json:"traits"`
	CodeQuality          *CodeQualityMetrics  `json:"codeQuality,omitempty"`
	DemonstrationQuality DemonstrationQuality `json:"demonstrationQuality"`
}

// CommunicationMetrics 沟通能力细分
type CommunicationMetrics struct {
	Clarity      float64 `json:"clarity"`
	Confidence   float64 `json:"confidence"`
	Engagement   float64 `json:"engagement"`
	Articulation float64 `json:"articulation"`
}

// LeadershipMetrics 领导力细分
type LeadershipMetrics struct {
	Initiative     float64 `json:"initiative"`
	DecisionMaking float64 `json:"decisionMaking"`
	Teamwork       float64 `json:"teamwork"`
	Mentoring      float64 `json:"mentoring"`
}

// ProblemSolvingMetrics 问题解决能力细分
type ProblemSolvingMetrics struct {
	AnalyticalThinking float64 `json:"analyticalThinking"`
	Creativity         float64 `json:"creativity"`
	SystematicApproach float64 `json:"systematicApproach"`
	Adaptability       float64 `json:"adaptability"`
}

// ProfessionalismMetrics 职业素养细分
type ProfessionalismMetrics struct {
	Presentation   float64 `json:"presentation"`
	TimeManagement float64 `json:"timeManagement"`
	Reliability    float64 `json:"reliability"`
	Ethics         float64 `json:"ethics"`
}

// SoftSkillAnalysis 软技能分析结果，四个维度各含四项细分指标
type SoftSkillAnalysis struct {
	Communication   CommunicationMetrics   `json:"communication"`
	Leadership      LeadershipMetrics      `json:"leadership"`
	ProblemSolving  ProblemSolvingMetrics  `json:"problemSolving"`
	Professionalism ProfessionalismMetrics `json:"professionalism"`
}

// AccessibilityMetrics 可访问性指标
type AccessibilityMetrics struct {
	HasSubtitles   bool    `json:"hasSubtitles"`
	AudioLevel     float64 `json:"audioLevel"`
	VisualContrast float64 `json:"visualContrast"`
}

// VideoQualityMetrics 视频质量指标，分数范围均为0-100
type VideoQualityMetrics struct {
	AudioClarity  float64              `json:"audioClarity"`
	VisualQuality float64              `json:"visualQuality"`
	Engagement    float64              `json:"engagement"`
	Pacing        float64              `json:"pacing"`
	Structure     float64              `json:"structure"`
	Accessibility AccessibilityMetrics `json:"accessibility"`
}

// BigFiveTraits 大五人格特质
type BigFiveTraits struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

// WorkStyle 工作风格
type WorkStyle struct {
	Collaborative  float64 `json:"collaborative"`
	Independent    float64 `json:"independent"`
	DetailOriented float64 `json:"detailOriented"`
	BigPicture     float64 `json:"bigPicture"`
}

// PersonalityInsights 性格洞察
type PersonalityInsights struct {
	Traits             BigFiveTraits      `json:"traits"`
	WorkStyle          WorkStyle          `json:"workStyle"`
	Motivators         []string           `json:"motivators"`
	CommunicationStyle CommunicationStyle `json:"communicationStyle"`
}

// ContentAnalysis 内容分析阶段的输出，聚合视频质量、性格洞察和关键话题
type ContentAnalysis struct {
	VideoQuality        VideoQualityMetrics `json:"videoQuality"`
	PersonalityInsights PersonalityInsights `json:"personalityInsights"`
	KeyTopics           []KeyTopic          `json:"keyTopics"`
}

// TranscriptSegment 转写文本分段，Start/End为秒
type TranscriptSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcript 完整转写结果
type Transcript struct {
	Text       string              `json:"text"`
	Confidence float64             `json:"confidence"`
	Segments   []TranscriptSegment `json:"segments"`
}

// KeyTopic 内容分析提取的关键话题
type KeyTopic struct {
	Topic     string   `json:"topic"`
	Relevance float64  `json:"relevance"`
	Mentions  int      `json:"mentions"`
	Context   []string `json:"context"`
}

// Recommendation 改进建议
type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Priority    Priority           `json:"priority"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ActionItems []string           `json:"actionItems"`
}

// CategoryScores 四个维度的类别分数
type CategoryScores struct {
	Technical     int `json:"technical"`
	Communication int `json:"communication"`
	Presentation  int `json:"presentation"`
	Content       int `json:"content"`
}

// IndustryBenchmark 行业基准对比
type IndustryBenchmark struct {
	Percentile       int      `json:"percentile"`
	SimilarProfiles  int      `json:"similarProfiles"`
	TopSkills        []string `json:"topSkills"`
	ImprovementAreas []string `json:"improvementAreas"`
}

// VideoAnalysisResult 单次视频分析的完整结果
type VideoAnalysisResult struct {
	ID             string    `json:"id"`
	VideoID        string    `json:"videoId"`
	AnalysisDate   time.Time `json:"analysisDate"`
	ProcessingTime float64   `json:"processingTime"` // 秒

	TechnicalSkills     []TechnicalSkillAnalysis `json:"technicalSkills"`
	SoftSkills          SoftSkillAnalysis        `json:"softSkills"`
	VideoQuality        VideoQualityMetrics      `json:"videoQuality"`
	PersonalityInsights PersonalityInsights      `json:"personalityInsights"`

	Transcript Transcript `json:"transcript"`
	KeyTopics  []KeyTopic `json:"keyTopics"`

	Recommendations []Recommendation `json:"recommendations"`

	OverallScore   int            `json:"overallScore"`
	CategoryScores CategoryScores `json:"categoryScores"`

	IndustryBenchmark IndustryBenchmark `json:"industryBenchmark"`
}

// VideoMetadata 分析请求中随附的视频元数据
type VideoMetadata struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    VideoCategory `json:"category"`
	Duration    float64       `json:"duration"`
	CandidateID string        `json:"candidateId"`
}

// AnalysisOptions 分析选项
type AnalysisOptions struct {
	IncludePersonality  bool     `json:"includePersonality"`
	IncludeBenchmarking bool     `json:"includeBenchmarking"`
	FocusAreas          []string `json:"focusAreas"`
	IndustryContext     string   `json:"industryContext,omitempty"`
}

// AnalysisRequest 视频分析请求
type AnalysisRequest struct {
	VideoURL        string          `json:"videoUrl"`
	VideoMetadata   VideoMetadata   `json:"videoMetadata"`
	AnalysisOptions AnalysisOptions `json:"analysisOptions"`
}

// Validate 校验请求的必填字段和枚举取值
func (r *AnalysisRequest) Validate() error {
	if r.VideoURL == "" {
		return fmt.Errorf("videoUrl不能为空")
	}
	if r.VideoMetadata.CandidateID == "" {
		return fmt.Errorf("videoMetadata.candidateId不能为空")
	}
	if r.VideoMetadata.Category != "" && !r.VideoMetadata.Category.Valid() {
		return fmt.Errorf("未知的视频类别: %s", r.VideoMetadata.Category)
	}
	if r.VideoMetadata.Duration < 0 {
		return fmt.Errorf("videoMetadata.duration不能为负数: %v", r.VideoMetadata.Duration)
	}
	return nil
}

// ProgressSnapshot 分析进度快照，供前端轮询
type ProgressSnapshot struct {
	AnalysisID  string        `json:"analysisId"`
	Progress    int           `json:"progress"` // 0-100，单调不减
	CurrentStep string        `json:"currentStep"`
	Stage       AnalysisStage `json:"stage"`
	Error       string        `json:"error,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
