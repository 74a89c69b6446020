package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"reelcv-ai-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadFile 上传文件到指定路径
	UploadFile(ctx context.Context, bucketName, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error)

	// DownloadFile 下载文件
	DownloadFile(ctx context.Context, bucketName, objectName string) ([]byte, error)

	// GetPresignedURL 获取预签名URL
	GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error)

	// DeleteFile 删除文件
	DeleteFile(ctx context.Context, bucketName, objectName string) error

	// 视频分析特定操作
	EnsureVideoStored(ctx context.Context, videoURL, candidateID string) (string, error)
	UploadTranscriptResult(ctx context.Context, candidateID, jobName string, payload []byte) (string, error)
	GetTranscriptResult(ctx context.Context, objectKey string) ([]byte, error)
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client            *minio.Client
	cfg               *config.MinIOConfig
	videosBucket      string
	transcriptsBucket string
	httpClient        *http.Client // 用于拉取外部视频URL
	logger            *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	logger.Printf("[MinIO] Initializing MinIO client with endpoint: %s, videosBucket: %s, transcriptsBucket: %s", cfg.Endpoint, cfg.VideosBucket, cfg.TranscriptsBucket)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.Printf("[MinIO] Initialization failed: %v", err)
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	videosBucket := cfg.VideosBucket
	if videosBucket == "" {
		videosBucket = "videos" // 默认值
	}
	transcriptsBucket := cfg.TranscriptsBucket
	if transcriptsBucket == "" {
		transcriptsBucket = "transcripts" // 默认值
	}

	m := &MinIO{
		client:            client,
		cfg:               cfg,
		videosBucket:      videosBucket,
		transcriptsBucket: transcriptsBucket,
		httpClient:        &http.Client{Timeout: 60 * time.Second},
		logger:            logger,
	}

	// 确保存储桶存在
	if err := m.ensureBucketExists(videosBucket, cfg.Location); err != nil {
		logger.Printf("[MinIO] Failed to ensure videos bucket %s exists: %v", videosBucket, err)
		return nil, fmt.Errorf("确保视频存储桶 %s 存在失败: %w", videosBucket, err)
	}
	if err := m.ensureBucketExists(transcriptsBucket, cfg.Location); err != nil {
		logger.Printf("[MinIO] Failed to ensure transcripts bucket %s exists: %v", transcriptsBucket, err)
		return nil, fmt.Errorf("确保转写结果存储桶 %s 存在失败: %w", transcriptsBucket, err)
	}

	// 设置生命周期规则
	if cfg.VideoExpireDays > 0 || cfg.TranscriptExpireDays > 0 {
		if err := m.setupLifecycleRules(context.Background()); err != nil {
			logger.Printf("[MinIO] Warning: Failed to set up lifecycle rules: %v", err)
		}
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

// VideosBucket 返回视频存储桶名称
func (m *MinIO) VideosBucket() string {
	return m.videosBucket
}

// TranscriptsBucket 返回转写结果存储桶名称
func (m *MinIO) TranscriptsBucket() string {
	return m.transcriptsBucket
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Printf("[MinIO] Bucket %s does not exist, attempting to create...", bucketName)
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] Bucket %s created successfully.", bucketName)
	}
	return nil
}

// setupLifecycleRules 设置对象生命周期规则
func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.VideoExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.videosBucket, "expire-videos", m.cfg.VideoExpireDays); err != nil {
			return fmt.Errorf("为视频存储桶 %s 设置生命周期失败: %w", m.videosBucket, err)
		}
	}
	if m.cfg.TranscriptExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.transcriptsBucket, "expire-transcripts", m.cfg.TranscriptExpireDays); err != nil {
			return fmt.Errorf("为转写结果存储桶 %s 设置生命周期失败: %w", m.transcriptsBucket, err)
		}
	}
	return nil
}

// setupBucketLifecycle 为指定存储桶设置生命周期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	m.logger.Printf("[MinIO] Setting lifecycle rule for bucket %s: ID=%s, ExpiryDays=%d", bucketName, ruleID, expiryDays)
	lcConfig := lifecycle.NewConfiguration()
	lcConfig.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}

	if err := m.client.SetBucketLifecycle(ctx, bucketName, lcConfig); err != nil {
		return err
	}
	return nil
}

// UploadFile 上传文件到指定存储桶
func (m *MinIO) UploadFile(ctx context.Context, bucketName, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error) {
	if m.cfg.EnableTestLogging {
		m.logger.Printf("[MinIO-UploadFile] Uploading: ObjectName='%s', FileSize=%d, ContentType='%s', Bucket='%s'", objectName, fileSize, contentType, bucketName)
	}

	info, err := m.client.PutObject(ctx, bucketName, objectName, reader, fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", bucketName, objectName, err)
	}

	if m.cfg.EnableTestLogging {
		m.logger.Printf("[MinIO-UploadFile] Successfully uploaded %s, ETag: %s, Size: %d", objectName, info.ETag, info.Size)
	}
	return objectName, nil
}

// EnsureVideoStored 确保视频位于受管的视频存储桶中。
// 如果URL已指向配置的视频桶则原样返回（幂等）；
// 否则拉取视频字节并上传到 videos/{candidateID}/{unixMillis}.mp4。
func (m *MinIO) EnsureVideoStored(ctx context.Context, videoURL, candidateID string) (string, error) {
	if strings.Contains(videoURL, m.videosBucket) {
		m.logger.Printf("[MinIO] Video already in managed bucket, skipping re-upload: %s", videoURL)
		return videoURL, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("创建视频下载请求失败: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("下载视频 %s 失败: %w", videoURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("下载视频 %s 失败，状态码: %d", videoURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取视频数据失败: %w", err)
	}

	objectName := fmt.Sprintf("videos/%s/%d.mp4", candidateID, time.Now().UnixMilli())
	_, err = m.client.PutObject(ctx, m.videosBucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "video/mp4"})
	if err != nil {
		return "", fmt.Errorf("上传视频到存储桶 %s 失败: %w", m.videosBucket, err)
	}

	m.logger.Printf("[MinIO] Video uploaded: %s/%s (%d bytes)", m.videosBucket, objectName, len(data))
	return fmt.Sprintf("%s/%s", m.videosBucket, objectName), nil
}

// UploadTranscriptResult 上传转写结果JSON
// 对象键: transcripts/{candidateID}/{jobName}.json
func (m *MinIO) UploadTranscriptResult(ctx context.Context, candidateID, jobName string, payload []byte) (string, error) {
	objectName := fmt.Sprintf("transcripts/%s/%s.json", candidateID, jobName)

	if m.cfg.EnableTestLogging {
		m.logger.Printf("[MinIO-UploadTranscriptResult] Uploading: CandidateID='%s', JobName='%s', ObjectName='%s'", candidateID, jobName, objectName)
	}

	_, err := m.client.PutObject(ctx, m.transcriptsBucket, objectName, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("上传转写结果 %s 到存储桶 %s 失败: %w", objectName, m.transcriptsBucket, err)
	}
	return objectName, nil
}

// GetTranscriptResult 从转写结果存储桶读取JSON
func (m *MinIO) GetTranscriptResult(ctx context.Context, objectKey string) ([]byte, error) {
	return m.DownloadFile(ctx, m.transcriptsBucket, objectKey)
}

// DownloadFile 下载文件
func (m *MinIO) DownloadFile(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	if m.cfg.EnableTestLogging {
		m.logger.Printf("[MinIO-DownloadFile] Downloading: ObjectName='%s', Bucket='%s'", objectName, bucketName)
	}

	obj, err := m.client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucketName, objectName, err)
	}
	defer obj.Close()

	// Stat用于尽早发现对象不存在或无权限
	stat, err := obj.Stat()
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", bucketName, objectName, err)
	}
	if m.cfg.EnableTestLogging {
		m.logger.Printf("[MinIO-DownloadFile] Object stats: Size=%d, ContentType=%s", stat.Size, stat.ContentType)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", bucketName, objectName, err)
	}
	return data, nil
}

// GetPresignedURL 获取预签名URL
func (m *MinIO) GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := m.client.PresignedGetObject(ctx, bucketName, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteFile 删除文件
func (m *MinIO) DeleteFile(ctx context.Context, bucketName, objectName string) error {
	err := m.client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除对象 %s/%s 失败: %w", bucketName, objectName, err)
	}
	return nil
}

// StatObject 暴露底层的StatObject方法，用于测试或特定场景
func (m *MinIO) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, bucketName, objectName, opts)
}
