package processor

import (
	"time"
)

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// Components 流水线的外部依赖集合，全部通过注入提供
type Components struct {
	VideoStore        VideoStore
	Transcriber       Transcriber
	ContentAnalyzer   ContentAnalyzer
	TechnicalAnalyzer TechnicalAnalyzer
	SoftSkillAnalyzer SoftSkillAnalyzer
	Recommender       RecommendationGenerator
	Benchmark         BenchmarkProvider
	DB                AnalysisDB
	Progress          ProgressSink
}

// Settings 流水线行为设置
type Settings struct {
	// StageTimeout 单个LLM分析阶段的超时，超时视为Timeout失败而非降级
	StageTimeout time.Duration

	// TranscribeTimeout 转写整体（含轮询）的超时上限
	TranscribeTimeout time.Duration

	// ConcurrentSkillAnalysis 技术技能与软技能两个阶段是否并发执行
	ConcurrentSkillAnalysis bool

	// PipelineVersion 写入结果的流水线版本号
	PipelineVersion string
}

// ----- 组件选项 -----

// WithcompVideostore 设置对象存储组件
func WithcompVideostore(store VideoStore) ComponentOpt {
	return func(c *Components) {
		c.VideoStore = store
	}
}

// WithcompTranscriber 设置转写客户端组件
func WithcompTranscriber(transcriber Transcriber) ComponentOpt {
	return func(c *Components) {
		c.Transcriber = transcriber
	}
}

// WithcompContentanalyzer 设置内容分析器组件
func WithcompContentanalyzer(analyzer ContentAnalyzer) ComponentOpt {
	return func(c *Components) {
		c.ContentAnalyzer = analyzer
	}
}

// WithcompTechnicalanalyzer 设置技术技能分析器组件
func WithcompTechnicalanalyzer(analyzer TechnicalAnalyzer) ComponentOpt {
	return func(c *Components) {
		c.TechnicalAnalyzer = analyzer
	}
}

// WithcompSoftskillanalyzer 设置软技能分析器组件
func WithcompSoftskillanalyzer(analyzer SoftSkillAnalyzer) ComponentOpt {
	return func(c *Components) {
		c.SoftSkillAnalyzer = analyzer
	}
}

// WithcompRecommender 设置建议生成器组件
func WithcompRecommender(generator RecommendationGenerator) ComponentOpt {
	return func(c *Components) {
		c.Recommender = generator
	}
}

// WithcompBenchmark 设置行业基准组件
func WithcompBenchmark(provider BenchmarkProvider) ComponentOpt {
	return func(c *Components) {
		c.Benchmark = provider
	}
}

// WithcompDatabase 设置持久化组件
func WithcompDatabase(db AnalysisDB) ComponentOpt {
	return func(c *Components) {
		c.DB = db
	}
}

// WithcompProgresssink 设置进度写入组件
func WithcompProgresssink(sink ProgressSink) ComponentOpt {
	return func(c *Components) {
		c.Progress = sink
	}
}

// ----- 设置选项 -----

// WithsetStagetimeout 设置单阶段超时
func WithsetStagetimeout(timeout time.Duration) SettingOpt {
	return func(s *Settings) {
		if timeout > 0 {
			s.StageTimeout = timeout
		}
	}
}

// WithsetTranscribetimeout 设置转写整体超时
func WithsetTranscribetimeout(timeout time.Duration) SettingOpt {
	return func(s *Settings) {
		if timeout > 0 {
			s.TranscribeTimeout = timeout
		}
	}
}

// WithsetConcurrentskillanalysis 设置技能阶段是否并发
func WithsetConcurrentskillanalysis(concurrent bool) SettingOpt {
	return func(s *Settings) {
		s.ConcurrentSkillAnalysis = concurrent
	}
}

// WithsetPipelineversion 设置流水线版本号
func WithsetPipelineversion(version string) SettingOpt {
	return func(s *Settings) {
		if version != "" {
			s.PipelineVersion = version
		}
	}
}
