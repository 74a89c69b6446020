package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"reelcv-ai-go/internal/agent"
	"reelcv-ai-go/internal/analyzer"
	"reelcv-ai-go/internal/api/handler"
	"reelcv-ai-go/internal/api/router"
	"reelcv-ai-go/internal/config"
	appCoreLogger "reelcv-ai-go/internal/logger"
	"reelcv-ai-go/internal/processor"
	"reelcv-ai-go/internal/ratelimit"
	"reelcv-ai-go/internal/relay"
	"reelcv-ai-go/internal/scoring"
	"reelcv-ai-go/internal/storage"
	"reelcv-ai-go/internal/tracing"
	"reelcv-ai-go/internal/transcribe"
)

var (
	version     = "1.0.0"        //nolint:gochecknoglobals
	serviceName = "reelcv-ai-go" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.InitProvider(ctx, serviceName, version, cfg.Tracing.Endpoint)
		if err != nil {
			glog.Fatalf("初始化追踪失败: %v", err)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdownTracing(shutdownCtx); err != nil {
				glog.Warnf("关闭追踪导出器失败: %v", err)
			}
		}()
		glog.Infof("追踪已启用，OTLP端点: %s", cfg.Tracing.Endpoint)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 每个LLM分析阶段独立的客户端，携带各自的采样参数和限流器
	contentClient, err := newStageClient(cfg, "content_analysis", cfg.Analyzer.Content)
	if err != nil {
		glog.Fatalf("初始化内容分析LLM客户端失败: %v", err)
	}
	technicalClient, err := newStageClient(cfg, "technical_skills", cfg.Analyzer.TechnicalSkills)
	if err != nil {
		glog.Fatalf("初始化技术技能LLM客户端失败: %v", err)
	}
	softSkillClient, err := newStageClient(cfg, "soft_skills", cfg.Analyzer.SoftSkills)
	if err != nil {
		glog.Fatalf("初始化软技能LLM客户端失败: %v", err)
	}
	recommendClient, err := newStageClient(cfg, "recommendations", cfg.Analyzer.Recommendations)
	if err != nil {
		glog.Fatalf("初始化建议生成LLM客户端失败: %v", err)
	}
	glog.Info("LLM客户端初始化成功")

	transcriber, err := transcribe.NewClient(&cfg.Transcribe)
	if err != nil {
		glog.Fatalf("初始化转写客户端失败: %v", err)
	}
	glog.Info("转写客户端初始化成功")

	pipeline, err := processor.NewVideoProcessor(
		[]processor.ComponentOpt{
			processor.WithcompVideostore(storageManager.MinIO),
			processor.WithcompTranscriber(transcriber),
			processor.WithcompContentanalyzer(analyzer.NewContentAnalyzer(contentClient,
				analyzer.WithContentPromptTemplate(cfg.Analyzer.Content.PromptTemplate))),
			processor.WithcompTechnicalanalyzer(analyzer.NewTechnicalSkillAnalyzer(technicalClient,
				analyzer.WithTechnicalPromptTemplate(cfg.Analyzer.TechnicalSkills.PromptTemplate))),
			processor.WithcompSoftskillanalyzer(analyzer.NewSoftSkillAnalyzer(softSkillClient,
				analyzer.WithSoftSkillPromptTemplate(cfg.Analyzer.SoftSkills.PromptTemplate))),
			processor.WithcompRecommender(analyzer.NewRecommendationGenerator(recommendClient,
				analyzer.WithRecommendationPromptTemplate(cfg.Analyzer.Recommendations.PromptTemplate))),
			processor.WithcompBenchmark(scoring.NewStubBenchmarkProvider(time.Now().UnixNano())),
			processor.WithcompDatabase(storageManager.MySQL),
			processor.WithcompProgresssink(storageManager.Redis),
		},
		[]processor.SettingOpt{
			processor.WithsetStagetimeout(config.GetDuration(cfg.Analyzer.Content.Timeout, 90*time.Second)),
			processor.WithsetConcurrentskillanalysis(cfg.Analyzer.ConcurrentSkillAnalysis),
		},
	)
	if err != nil {
		glog.Fatalf("初始化视频分析流水线失败: %v", err)
	}
	glog.Info("视频分析流水线初始化成功")

	messageRelay := relay.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, &cfg.RabbitMQ)
	messageRelay.Start()
	glog.Info("消息中继服务已启动")

	analysisHandler := handler.NewAnalysisHandler(cfg, storageManager, pipeline)
	glog.Info("AnalysisHandler初始化成功")

	go func() {
		workers := cfg.RabbitMQ.PrefetchCount
		if w, ok := cfg.RabbitMQ.ConsumerWorkers["analysis_consumer_workers"]; ok {
			workers = w
		}
		if workers <= 0 {
			workers = 3
		}
		glog.Infof("启动分析任务消费者，预取数量: %d", workers)
		if err := analysisHandler.StartAnalysisTaskConsumer(context.Background(), workers); err != nil {
			glog.Fatalf("启动分析任务消费者失败: %v", err)
		}
	}()

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, cfg, analysisHandler)
	glog.Info("HTTP路由注册成功")

	go func() {
		glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	messageRelay.Stop()
	glog.Info("消息中继服务已停止")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// newStageClient 按阶段配置构建LLM客户端
func newStageClient(cfg *config.Config, taskName string, stage config.StageConfig) (*agent.ChatClient, error) {
	modelName := stage.ModelName
	if modelName == "" {
		modelName = cfg.GetModelForTask(taskName)
	}

	options := []agent.ChatClientOption{
		agent.WithSamplingParams(stage.Temperature, stage.MaxTokens),
		agent.WithHTTPTimeout(config.GetDuration(stage.Timeout, 90*time.Second)),
	}

	qpm := stage.QPM
	if qpm == 0 {
		qpm = cfg.ModelQPMLimits[modelName]
	}
	if qpm > 0 {
		capacity := qpm / 10
		if capacity < 1 {
			capacity = 1
		}
		options = append(options, agent.WithRateLimiter(ratelimit.NewTokenBucket(qpm, capacity)))
	}

	return agent.NewChatClient(cfg.LLM.APIKey, modelName, cfg.LLM.APIURL, options...)
}

func initLogger(cfg *config.Config) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
}
