package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"reelcv-ai-go/internal/config"
	"reelcv-ai-go/internal/constants"
	"reelcv-ai-go/internal/tracing"
	"reelcv-ai-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("reelcv-ai-go/storage/redis")

// Redis操作前缀采样率配置
var redisKeySamplingRates = map[string]float64{
	"app:analysis:progress:": 0.05, // 进度写入频繁，采样5%
	"app:analysis:result:":   0.25, // 结果缓存采样25%
	"app:analysis:lock:":     0.5,  // 锁操作采样50%
	"app:candidate:":         0.1,  // 候选人相关采样10%
}

// 随机数生成器
var (
	rnd      *rand.Rand
	rndMutex sync.Mutex
)

func init() {
	source := rand.NewSource(time.Now().UnixNano())
	rnd = rand.New(source)
}

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}

	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}

	// 默认采样率5%
	return randFloat() < 0.05
}

// 生成0-1之间的随机数
func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// GetProgressExpireDuration 返回进度快照的过期时间
func (r *Redis) GetProgressExpireDuration() time.Duration {
	hours := r.config.ProgressExpireHours
	if hours <= 0 {
		return constants.ProgressCacheDuration
	}
	return time.Duration(hours) * time.Hour
}

// SetProgress 写入进度快照，保证进度单调不减。
// 使用Lua脚本原子比较已存进度，乱序到达的旧快照会被丢弃。
func (r *Redis) SetProgress(ctx context.Context, snapshot *types.ProgressSnapshot) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if snapshot == nil || snapshot.AnalysisID == "" {
		return fmt.Errorf("进度快照不能为空")
	}

	ctx, span := redisTracer.Start(ctx, "Redis.SetProgress",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	key := fmt.Sprintf(constants.KeyAnalysisProgress, snapshot.AnalysisID)
	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("db.operation", "EVAL"),
		attribute.String("db.redis.key", key),
		attribute.Int("analysis.progress", snapshot.Progress),
	)

	payload, err := json.Marshal(snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("序列化进度快照失败: %w", err)
	}

	// 只有新进度 >= 已存进度时才覆盖
	script := `
		local current = redis.call('GET', KEYS[1])
		if current then
			local decoded = cjson.decode(current)
			if decoded.progress and tonumber(decoded.progress) > tonumber(ARGV[2]) then
				return 0
			end
		end
		redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[3])
		return 1
	`

	expiry := int64(r.GetProgressExpireDuration().Seconds())
	res, err := r.Client.Eval(ctx, script, []string{key}, string(payload), snapshot.Progress, expiry).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("写入进度快照失败: %w", err)
	}

	if updated, ok := res.(int64); ok {
		span.SetAttributes(attribute.Bool("progress_updated", updated == 1))
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// GetProgress 读取进度快照，不存在时返回 ErrNotFound
func (r *Redis) GetProgress(ctx context.Context, analysisID string) (*types.ProgressSnapshot, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}

	key := fmt.Sprintf(constants.KeyAnalysisProgress, analysisID)
	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		return nil, err // 包括 redis.Nil 错误
	}

	var snapshot types.ProgressSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("反序列化进度快照失败: %w", err)
	}
	return &snapshot, nil
}

// CacheAnalysisResult 缓存完整分析结果，减少读接口对MySQL的压力
func (r *Redis) CacheAnalysisResult(ctx context.Context, analysisID string, result *types.VideoAnalysisResult) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化分析结果失败: %w", err)
	}

	key := fmt.Sprintf(constants.KeyAnalysisResult, analysisID)
	return r.Client.Set(ctx, key, string(payload), constants.ResultCacheDuration).Err()
}

// GetCachedAnalysisResult 读取缓存的分析结果，不存在时返回 ErrNotFound
func (r *Redis) GetCachedAnalysisResult(ctx context.Context, analysisID string) (*types.VideoAnalysisResult, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}

	key := fmt.Sprintf(constants.KeyAnalysisResult, analysisID)
	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var result types.VideoAnalysisResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("反序列化缓存结果失败: %w", err)
	}
	return &result, nil
}

// Get 获取键的值
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	// 根据key前缀决定是否创建span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Get", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			// 设置标志位，表示不要在子span中传播，避免与redisotel hook产生的span重复
			attribute.Bool("otel.propagate_to_child", false),
		)
	}

	val, err := r.Client.Get(ctx, key).Result()

	if span != nil {
		if err != nil {
			// 对于key不存在的情况，不应该算作错误
			if err == redis.Nil {
				span.SetStatus(codes.Ok, "key not found")
				span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
			} else {
				tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			}
			return "", err
		}

		span.SetAttributes(
			attribute.Bool("db.redis.key_exists", true),
			attribute.Int("db.redis.value_length", len(val)),
		)
		span.SetStatus(codes.Ok, "")
	}

	return val, err
}

// Set 设置键的值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Set", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			attribute.Int("db.redis.value_length", len(value)),
			attribute.Bool("otel.propagate_to_child", false),
		)

		if expiration > 0 {
			span.SetAttributes(attribute.Int64("db.redis.expiration_ms", expiration.Milliseconds()))
		}
	}

	err := r.Client.Set(ctx, key, value, expiration).Err()

	if span != nil {
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			return err
		}
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// AcquireAnalysisLock 尝试获取同一视频的分析去重锁。
// 返回锁持有者标识，未获取到锁时返回空字符串。
func (r *Redis) AcquireAnalysisLock(ctx context.Context, videoID string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	lockKey := fmt.Sprintf(constants.KeyAnalysisLock, videoID)
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	// NX保证了原子性
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

// ReleaseAnalysisLock 释放分析去重锁，使用Lua脚本保证原子性
func (r *Redis) ReleaseAnalysisLock(ctx context.Context, videoID string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	lockKey := fmt.Sprintf(constants.KeyAnalysisLock, videoID)
	// 如果key存在且值匹配，则删除key
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}

	return false, nil // 锁不存在或不属于当前持有者
}
