package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelcv-ai-go/internal/config"
	"reelcv-ai-go/internal/constants"
	"reelcv-ai-go/internal/logger"
)

// 转写任务状态
const (
	JobStatusQueued     = "QUEUED"
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)

const (
	defaultMaxSpeakers     = 2
	defaultMaxAlternatives = 3
	defaultMediaFormat     = "mp4"
	defaultLanguageCode    = "en-US"
	defaultPollMaxAttempts = 60
	maxPollWait            = 15 * time.Second
	basePollWait           = 5 * time.Second
)

var (
	// ErrJobFailed 转写服务报告任务失败
	ErrJobFailed = errors.New("转写任务执行失败")
	// ErrJobTimeout 轮询超出最大次数，任务仍未完成
	ErrJobTimeout = errors.New("等待转写任务完成超时")
)

// Transcriber 转写服务客户端接口，消费方依赖此接口便于测试替换
type Transcriber interface {
	// StartJob 发起转写任务，返回任务名
	StartJob(ctx context.Context, candidateID, mediaURI string) (string, error)

	// GetJob 查询任务当前状态
	GetJob(ctx context.Context, jobName string) (*JobStatus, error)

	// WaitForCompletion 轮询直到任务完成、失败或超时
	WaitForCompletion(ctx context.Context, jobName string) (*JobStatus, error)
}

// JobStatus 转写任务的状态快照
type JobStatus struct {
	JobName       string `json:"job_name"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	OutputKey     string `json:"output_key,omitempty"` // 结果JSON在输出桶中的对象键
}

// Client 通过HTTP API调用转写服务
type Client struct {
	cfg        *config.TranscribeConfig
	httpClient *http.Client
	now        func() time.Time // 可注入，测试时固定任务名时间戳
}

// ClientOption 客户端配置选项
type ClientOption func(*Client)

// WithHTTPClient 替换底层HTTP客户端
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient 创建转写服务客户端
func NewClient(cfg *config.TranscribeConfig, options ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("转写配置不能为空")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("转写服务Endpoint不能为空")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// JobName 生成转写任务名: transcription_{candidateID}_{unixMillis}
func (c *Client) JobName(candidateID string) string {
	return fmt.Sprintf("%s_%s_%d", constants.TranscriptionJobPrefix, candidateID, c.now().UnixMilli())
}

// OutputKey 转写结果在输出桶中的对象键
func OutputKey(candidateID, jobName string) string {
	return fmt.Sprintf("transcripts/%s/%s.json", candidateID, jobName)
}

type startJobRequest struct {
	JobName      string          `json:"job_name"`
	MediaFileURI string          `json:"media_file_uri"`
	MediaFormat  string          `json:"media_format"`
	LanguageCode string          `json:"language_code"`
	Settings     jobSettings     `json:"settings"`
	Output       jobOutputTarget `json:"output"`
}

type jobSettings struct {
	ShowSpeakerLabels bool `json:"show_speaker_labels"`
	MaxSpeakerLabels  int  `json:"max_speaker_labels"`
	ShowAlternatives  bool `json:"show_alternatives"`
	MaxAlternatives   int  `json:"max_alternatives"`
}

type jobOutputTarget struct {
	BucketName string `json:"bucket_name"`
	ObjectKey  string `json:"object_key"`
}

// StartJob 发起转写任务
func (c *Client) StartJob(ctx context.Context, candidateID, mediaURI string) (string, error) {
	if strings.TrimSpace(candidateID) == "" {
		return "", fmt.Errorf("candidateID不能为空")
	}
	if strings.TrimSpace(mediaURI) == "" {
		return "", fmt.Errorf("mediaURI不能为空")
	}

	jobName := c.JobName(candidateID)

	maxSpeakers := c.cfg.MaxSpeakers
	if maxSpeakers <= 0 {
		maxSpeakers = defaultMaxSpeakers
	}
	maxAlternatives := c.cfg.MaxAlternatives
	if maxAlternatives <= 0 {
		maxAlternatives = defaultMaxAlternatives
	}
	mediaFormat := c.cfg.MediaFormat
	if mediaFormat == "" {
		mediaFormat = defaultMediaFormat
	}
	languageCode := c.cfg.LanguageCode
	if languageCode == "" {
		languageCode = defaultLanguageCode
	}

	reqPayload := startJobRequest{
		JobName:      jobName,
		MediaFileURI: mediaURI,
		MediaFormat:  mediaFormat,
		LanguageCode: languageCode,
		Settings: jobSettings{
			ShowSpeakerLabels: true,
			MaxSpeakerLabels:  maxSpeakers,
			ShowAlternatives:  true,
			MaxAlternatives:   maxAlternatives,
		},
		Output: jobOutputTarget{
			BucketName: c.cfg.OutputBucketName,
			ObjectKey:  OutputKey(candidateID, jobName),
		},
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("序列化转写请求失败: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.Endpoint, "/") + "/jobs"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建转写请求失败: %w", err)
	}
	c.setHeaders(httpReq)

	logger.Debug().Str("job_name", jobName).Str("media_uri", mediaURI).Msg("发起转写任务")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("发送转写请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("读取转写响应失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("转写服务返回错误，状态 %s: %s", httpResp.Status, string(respBytes))
	}

	return jobName, nil
}

// GetJob 查询任务状态
func (c *Client) GetJob(ctx context.Context, jobName string) (*JobStatus, error) {
	url := fmt.Sprintf("%s/jobs/%s", strings.TrimSuffix(c.cfg.Endpoint, "/"), jobName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建查询请求失败: %w", err)
	}
	c.setHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("查询转写任务失败: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取查询响应失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("转写服务返回错误，状态 %s: %s", httpResp.Status, string(respBytes))
	}

	var status JobStatus
	if err := json.Unmarshal(respBytes, &status); err != nil {
		return nil, fmt.Errorf("反序列化任务状态失败: %w", err)
	}
	return &status, nil
}

// pollWait 计算第attempt次轮询前的等待时长。
// 等待从5秒起每次递增1秒，上限15秒。
func pollWait(attempt int) time.Duration {
	wait := basePollWait + time.Duration(attempt)*time.Second
	if wait > maxPollWait {
		return maxPollWait
	}
	return wait
}

// WaitForCompletion 轮询任务直到完成、失败或超出最大轮询次数。
// 上下文取消时立即返回ctx.Err()。
func (c *Client) WaitForCompletion(ctx context.Context, jobName string) (*JobStatus, error) {
	maxAttempts := c.cfg.PollMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultPollMaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollWait(attempt)):
		}

		status, err := c.GetJob(ctx, jobName)
		if err != nil {
			// 单次查询失败不中止轮询，网络抖动下任务可能仍在进行
			logger.Warn().Err(err).Str("job_name", jobName).Int("attempt", attempt+1).Msg("查询转写任务状态失败")
			continue
		}

		switch status.Status {
		case JobStatusCompleted:
			logger.Info().Str("job_name", jobName).Int("attempts", attempt+1).Msg("转写任务完成")
			return status, nil
		case JobStatusFailed:
			return status, fmt.Errorf("%w: %s", ErrJobFailed, status.FailureReason)
		case JobStatusQueued, JobStatusInProgress:
			logger.Debug().Str("job_name", jobName).Str("status", status.Status).Int("attempt", attempt+1).Msg("转写任务进行中")
		default:
			logger.Warn().Str("job_name", jobName).Str("status", status.Status).Msg("转写任务返回未知状态")
		}
	}

	return nil, fmt.Errorf("%w: 任务 %s 在 %d 次轮询后仍未完成", ErrJobTimeout, jobName, maxAttempts)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Region != "" {
		req.Header.Set("X-Region", c.cfg.Region)
	}
}

var _ Transcriber = (*Client)(nil)
