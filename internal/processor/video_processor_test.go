package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelcv-ai-go/internal/analyzer"
	"reelcv-ai-go/internal/scoring"
	"reelcv-ai-go/internal/transcribe"
	"reelcv-ai-go/internal/types"
)

// ----- 测试桩 -----

type stubVideoStore struct {
	storedPath string
	transcript []byte
	storeErr   error
	getErr     error

	mu      sync.Mutex
	getKeys []string
}

func (s *stubVideoStore) EnsureVideoStored(_ context.Context, _, _ string) (string, error) {
	if s.storeErr != nil {
		return "", s.storeErr
	}
	return s.storedPath, nil
}

func (s *stubVideoStore) GetTranscriptResult(_ context.Context, objectKey string) ([]byte, error) {
	s.mu.Lock()
	s.getKeys = append(s.getKeys, objectKey)
	s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.transcript, nil
}

type stubTranscriber struct {
	jobName  string
	status   *transcribe.JobStatus
	startErr error
	waitErr  error
}

func (s *stubTranscriber) StartJob(_ context.Context, _, _ string) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	return s.jobName, nil
}

func (s *stubTranscriber) WaitForCompletion(_ context.Context, _ string) (*transcribe.JobStatus, error) {
	if s.waitErr != nil {
		return nil, s.waitErr
	}
	return s.status, nil
}

type stubContentAnalyzer struct {
	result   *types.ContentAnalysis
	degraded bool
	err      error
	// block为true时一直等到上下文取消，用于模拟阶段超时
	block bool
}

func (s *stubContentAnalyzer) Analyze(ctx context.Context, _ *types.Transcript, _ *types.AnalysisRequest) (*types.ContentAnalysis, bool, error) {
	if s.block {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}
	return s.result, s.degraded, s.err
}

type stubTechnicalAnalyzer struct {
	result   []types.TechnicalSkillAnalysis
	degraded bool
	err      error
}

func (s *stubTechnicalAnalyzer) Analyze(_ context.Context, _ *types.Transcript, _ *types.AnalysisRequest) ([]types.TechnicalSkillAnalysis, bool, error) {
	return s.result, s.degraded, s.err
}

type stubSoftSkillAnalyzer struct {
	result   *types.SoftSkillAnalysis
	degraded bool
	err      error
}

func (s *stubSoftSkillAnalyzer) Analyze(_ context.Context, _ *types.Transcript) (*types.SoftSkillAnalysis, bool, error) {
	return s.result, s.degraded, s.err
}

type stubRecommender struct {
	result   []types.Recommendation
	degraded bool
	err      error
}

func (s *stubRecommender) Generate(_ context.Context, _ *types.ContentAnalysis, _ []types.TechnicalSkillAnalysis, _ *types.SoftSkillAnalysis) ([]types.Recommendation, bool, error) {
	return s.result, s.degraded, s.err
}

type stubBenchmark struct {
	result *types.IndustryBenchmark
	err    error
	calls  int
}

func (s *stubBenchmark) GetBenchmark(_ context.Context, _ []types.TechnicalSkillAnalysis, _ *types.VideoMetadata) (*types.IndustryBenchmark, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubDB struct {
	mu sync.Mutex

	processingCalls int
	jobNames        []string
	saved           *types.VideoAnalysisResult
	savedID         string
	failedMsg       string

	processingErr error
	saveErr       error
}

func (s *stubDB) MarkAnalysisProcessing(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processingCalls++
	return s.processingErr
}

func (s *stubDB) UpdateTranscription(_ context.Context, _, _, jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobNames = append(s.jobNames, jobName)
	return nil
}

func (s *stubDB) SaveAnalysisResult(_ context.Context, analysisID string, result *types.VideoAnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.savedID = analysisID
	s.saved = result
	return nil
}

func (s *stubDB) MarkAnalysisFailed(_ context.Context, _ string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedMsg = errMsg
	return nil
}

type progressRecorder struct {
	mu        sync.Mutex
	snapshots []types.ProgressSnapshot
	cached    map[string]*types.VideoAnalysisResult
	setErr    error
}

func newProgressRecorder() *progressRecorder {
	return &progressRecorder{cached: make(map[string]*types.VideoAnalysisResult)}
}

func (p *progressRecorder) SetProgress(_ context.Context, snapshot *types.ProgressSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setErr != nil {
		return p.setErr
	}
	p.snapshots = append(p.snapshots, *snapshot)
	return nil
}

func (p *progressRecorder) CacheAnalysisResult(_ context.Context, analysisID string, result *types.VideoAnalysisResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached[analysisID] = result
	return nil
}

func (p *progressRecorder) progressValues() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	values := make([]int, 0, len(p.snapshots))
	for _, s := range p.snapshots {
		values = append(values, s.Progress)
	}
	return values
}

// ----- 测试夹具 -----

func validRequest() *types.AnalysisRequest {
	return &types.AnalysisRequest{
		VideoURL: "https://example.com/videos/demo.mp4",
		VideoMetadata: types.VideoMetadata{
			Title:       "自我介绍视频",
			Category:    types.VideoCategoryIntroduction,
			Duration:    120,
			CandidateID: "candidate-001",
		},
		AnalysisOptions: types.AnalysisOptions{
			IncludePersonality:  true,
			IncludeBenchmarking: true,
		},
	}
}

func sampleTranscriptJSON() []byte {
	return []byte(`{"results":{"transcripts":[{"transcript":"I build web applications with Go and React.","confidence":0.92}],"items":[{"start_time":"0.0","end_time":"4.5","type":"pronunciation","alternatives":[{"content":"I build web applications","confidence":"0.96"}]}]}}`)
}

type fixtureOverrides struct {
	store       *stubVideoStore
	transcriber *stubTranscriber
	content     *stubContentAnalyzer
	benchmark   *stubBenchmark
	db          *stubDB
	settings    []SettingOpt
}

func newTestProcessor(t *testing.T, o fixtureOverrides) (*VideoProcessor, *stubDB, *progressRecorder) {
	t.Helper()

	if o.store == nil {
		o.store = &stubVideoStore{
			storedPath: "videos/candidate-001/demo.mp4",
			transcript: sampleTranscriptJSON(),
		}
	}
	if o.transcriber == nil {
		o.transcriber = &stubTranscriber{
			jobName: "transcription_candidate-001_1700000000000",
			status: &transcribe.JobStatus{
				JobName:   "transcription_candidate-001_1700000000000",
				Status:    transcribe.JobStatusCompleted,
				OutputKey: "transcripts/candidate-001/transcription_candidate-001_1700000000000.json",
			},
		}
	}
	if o.content == nil {
		o.content = &stubContentAnalyzer{result: analyzer.DefaultContentAnalysis()}
	}
	if o.benchmark == nil {
		o.benchmark = &stubBenchmark{
			result: &types.IndustryBenchmark{Percentile: 72, SimilarProfiles: 1200},
		}
	}
	if o.db == nil {
		o.db = &stubDB{}
	}

	progress := newProgressRecorder()

	compOpts := []ComponentOpt{
		WithcompVideostore(o.store),
		WithcompTranscriber(o.transcriber),
		WithcompContentanalyzer(o.content),
		WithcompTechnicalanalyzer(&stubTechnicalAnalyzer{result: analyzer.DefaultTechnicalSkills()}),
		WithcompSoftskillanalyzer(&stubSoftSkillAnalyzer{result: analyzer.DefaultSoftSkills()}),
		WithcompRecommender(&stubRecommender{result: analyzer.DefaultRecommendations()}),
		WithcompBenchmark(o.benchmark),
		WithcompDatabase(o.db),
		WithcompProgresssink(progress),
	}

	p, err := NewVideoProcessor(compOpts, o.settings)
	require.NoError(t, err, "创建流水线不应失败")
	return p, o.db, progress
}

// ----- 测试 -----

func TestNewVideoProcessor_MissingComponents(t *testing.T) {
	_, err := NewVideoProcessor(nil, nil)
	assert.Error(t, err, "缺少组件时应返回错误")

	_, err = NewVideoProcessor([]ComponentOpt{
		WithcompVideostore(&stubVideoStore{}),
	}, nil)
	assert.Error(t, err, "缺少转写组件时应返回错误")
}

func TestNewVideoProcessor_Defaults(t *testing.T) {
	p, _, _ := newTestProcessor(t, fixtureOverrides{})
	assert.Equal(t, defaultStageTimeout, p.Settings.StageTimeout)
	assert.True(t, p.Settings.ConcurrentSkillAnalysis)
	assert.Equal(t, "1.0", p.Settings.PipelineVersion)
}

func TestProcess_HappyPath(t *testing.T) {
	p, db, progress := newTestProcessor(t, fixtureOverrides{})

	task := &AnalysisTask{
		AnalysisID: "analysis-123",
		VideoID:    "video-456",
		Request:    validRequest(),
	}

	result, err := p.Process(context.Background(), task)
	require.NoError(t, err, "完整流水线不应失败")
	require.NotNil(t, result)

	assert.Equal(t, "analysis-123", result.ID)
	assert.Equal(t, "video-456", result.VideoID)
	assert.Equal(t, "I build web applications with Go and React.", result.Transcript.Text)
	assert.Equal(t, 0.92, result.Transcript.Confidence)
	assert.Equal(t, 72, result.IndustryBenchmark.Percentile)

	// 分数与纯计算结果一致
	expectedOverall, expectedCategories := scoring.Calculate(
		analyzer.DefaultTechnicalSkills(), analyzer.DefaultSoftSkills(), analyzer.DefaultContentAnalysis())
	assert.Equal(t, expectedOverall, result.OverallScore)
	assert.Equal(t, expectedCategories, result.CategoryScores)

	// 持久化与缓存都已发生
	assert.Equal(t, "analysis-123", db.savedID)
	require.NotNil(t, db.saved)
	assert.Equal(t, 1, db.processingCalls)
	assert.Equal(t, []string{"transcription_candidate-001_1700000000000"}, db.jobNames)
	assert.Contains(t, progress.cached, "analysis-123")

	// 进度检查点依次递增到100
	values := progress.progressValues()
	require.NotEmpty(t, values)
	assert.Equal(t, 5, values[0])
	assert.Equal(t, 100, values[len(values)-1])
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "进度必须单调不减")
	}
}

func TestProcess_ValidationFailure(t *testing.T) {
	p, db, progress := newTestProcessor(t, fixtureOverrides{})

	req := validRequest()
	req.VideoURL = ""
	task := &AnalysisTask{AnalysisID: "analysis-bad", Request: req}

	_, err := p.Process(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed), "应归类为校验失败")
	assert.NotEmpty(t, db.failedMsg, "失败状态应写入数据库")

	progress.mu.Lock()
	last := progress.snapshots[len(progress.snapshots)-1]
	progress.mu.Unlock()
	assert.Equal(t, types.StageFailed, last.Stage)
	assert.Equal(t, "Analysis failed", last.CurrentStep)
}

func TestProcess_TranscriptionJobFailed(t *testing.T) {
	p, db, _ := newTestProcessor(t, fixtureOverrides{
		transcriber: &stubTranscriber{
			jobName: "job-1",
			waitErr: fmt.Errorf("%w: 服务内部错误", transcribe.ErrJobFailed),
		},
	})

	_, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscriptionJobFailed))
	assert.NotEmpty(t, db.failedMsg)
}

func TestProcess_TranscriptionTimeout(t *testing.T) {
	p, _, _ := newTestProcessor(t, fixtureOverrides{
		transcriber: &stubTranscriber{
			jobName: "job-1",
			waitErr: fmt.Errorf("%w: 任务 job-1 在 60 次轮询后仍未完成", transcribe.ErrJobTimeout),
		},
	})

	_, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscriptionTimeout), "轮询超时应归类为转写超时")
	assert.False(t, errors.Is(err, ErrTranscriptionJobFailed))
}

func TestProcess_DegradedTranscript(t *testing.T) {
	p, db, _ := newTestProcessor(t, fixtureOverrides{
		store: &stubVideoStore{
			storedPath: "videos/candidate-001/demo.mp4",
			getErr:     errors.New("对象不存在"),
		},
	})

	result, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.NoError(t, err, "转写结果读取失败应降级而非终止")
	require.NotNil(t, result)

	fallback := transcribe.FallbackTranscript()
	assert.Equal(t, fallback.Text, result.Transcript.Text)
	assert.Equal(t, fallback.Confidence, result.Transcript.Confidence)
	assert.NotNil(t, db.saved, "降级结果仍需持久化")
}

func TestProcess_LLMErrorDegradesStage(t *testing.T) {
	p, _, _ := newTestProcessor(t, fixtureOverrides{
		content: &stubContentAnalyzer{err: errors.New("模型调用失败")},
	})

	result, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.NoError(t, err, "单个LLM阶段调用失败应降级")
	require.NotNil(t, result)

	fallback := analyzer.DefaultContentAnalysis()
	assert.Equal(t, fallback.VideoQuality, result.VideoQuality)
	assert.Equal(t, fallback.PersonalityInsights, result.PersonalityInsights)
}

func TestProcess_StageTimeout(t *testing.T) {
	p, db, _ := newTestProcessor(t, fixtureOverrides{
		content:  &stubContentAnalyzer{block: true},
		settings: []SettingOpt{WithsetStagetimeout(50 * time.Millisecond)},
	})

	start := time.Now()
	_, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStageTimeout), "阶段超时是终止性错误而非降级")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotEmpty(t, db.failedMsg)
}

func TestProcess_PersistenceFailure(t *testing.T) {
	p, _, _ := newTestProcessor(t, fixtureOverrides{
		db: &stubDB{saveErr: errors.New("数据库连接中断")},
	})

	_, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistenceFailed))
}

func TestProcess_BenchmarkingSkippedWhenDisabled(t *testing.T) {
	benchmark := &stubBenchmark{result: &types.IndustryBenchmark{Percentile: 90}}
	p, _, _ := newTestProcessor(t, fixtureOverrides{benchmark: benchmark})

	req := validRequest()
	req.AnalysisOptions.IncludeBenchmarking = false

	result, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: req})
	require.NoError(t, err)
	assert.Equal(t, 0, benchmark.calls, "关闭基准对比时不应调用基准组件")
	assert.Equal(t, 0, result.IndustryBenchmark.Percentile)
}

func TestProcess_BenchmarkErrorOmitsBenchmark(t *testing.T) {
	p, _, _ := newTestProcessor(t, fixtureOverrides{
		benchmark: &stubBenchmark{err: errors.New("基准服务不可用")},
	})

	result, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.NoError(t, err, "基准获取失败不应终止流水线")
	assert.Equal(t, 0, result.IndustryBenchmark.Percentile)
}

func TestProcess_ContextCancelled(t *testing.T) {
	p, _, _ := newTestProcessor(t, fixtureOverrides{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProcess_SequentialSkillStages(t *testing.T) {
	p, db, _ := newTestProcessor(t, fixtureOverrides{
		settings: []SettingOpt{WithsetConcurrentskillanalysis(false)},
	})

	result, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotNil(t, db.saved)
}

func TestProcess_VideoIDDefaultsToCandidate(t *testing.T) {
	p, _, _ := newTestProcessor(t, fixtureOverrides{})

	result, err := p.Process(context.Background(), &AnalysisTask{AnalysisID: "a1", Request: validRequest()})
	require.NoError(t, err)
	assert.Equal(t, "candidate-001", result.VideoID)
}
