package scoring

import (
	"context"
	"math"
	"math/rand"

	"reelcv-ai-go/internal/types"
)

// BenchmarkProvider 行业基准数据来源。
// 后续接入真实基准库时替换此接口的实现即可。
type BenchmarkProvider interface {
	GetBenchmark(ctx context.Context, technical []types.TechnicalSkillAnalysis, metadata *types.VideoMetadata) (*types.IndustryBenchmark, error)
}

// StubBenchmarkProvider 生成伪随机的基准数据。
// percentile落在[25,95]，similarProfiles落在[800,1800)。
// 随机源可注入，测试中使用固定种子得到确定输出。
type StubBenchmarkProvider struct {
	rnd *rand.Rand
}

// NewStubBenchmarkProvider 创建基准数据桩实现
func NewStubBenchmarkProvider(seed int64) *StubBenchmarkProvider {
	return &StubBenchmarkProvider{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// GetBenchmark 实现 BenchmarkProvider 接口
func (p *StubBenchmarkProvider) GetBenchmark(ctx context.Context, technical []types.TechnicalSkillAnalysis, metadata *types.VideoMetadata) (*types.IndustryBenchmark, error) {
	percentile := math.Min(95, math.Max(25, 50+p.rnd.Float64()*40))
	similarProfiles := 800 + p.rnd.Intn(1000)

	return &types.IndustryBenchmark{
		Percentile:       int(math.Round(percentile)),
		SimilarProfiles:  similarProfiles,
		TopSkills:        []string{"React", "JavaScript", "Problem Solving", "Communication"},
		ImprovementAreas: []string{"System Design", "Leadership", "Public Speaking", "Testing"},
	}, nil
}

var _ BenchmarkProvider = (*StubBenchmarkProvider)(nil)
