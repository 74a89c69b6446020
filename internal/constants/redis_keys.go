package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// AnalysisModulePrefix 视频分析模块
	AnalysisModulePrefix = "analysis"
	// CandidateModulePrefix 候选人模块
	CandidateModulePrefix = "candidate"

	// EntityProgress 进度快照实体
	EntityProgress = "progress"
	// EntityResult 分析结果缓存实体
	EntityResult = "result"
	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// KeyAnalysisProgress 分析进度快照 (STRING, JSON)
	// 格式: app:analysis:progress:{analysisID}
	KeyAnalysisProgress = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityProgress + ":%s"

	// KeyAnalysisResult 完成结果缓存 (STRING, JSON)
	// 格式: app:analysis:result:{analysisID}
	KeyAnalysisResult = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityResult + ":%s"

	// KeyAnalysisLock 同一视频的分析去重锁 (STRING)
	// 格式: app:analysis:lock:{videoID}
	KeyAnalysisLock = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityLock + ":%s"
)
