package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelcv-ai-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) *config.TranscribeConfig {
	return &config.TranscribeConfig{
		Endpoint:         endpoint,
		Region:           "us-east-1",
		APIKey:           "test-key",
		LanguageCode:     "en-US",
		MaxSpeakers:      2,
		MaxAlternatives:  3,
		PollMaxAttempts:  60,
		TimeoutSeconds:   5,
		MediaFormat:      "mp4",
		OutputBucketName: "transcripts",
	}
}

// TestClient_NewClient 测试客户端初始化参数校验
func TestClient_NewClient(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err, "空配置应该返回错误")

	_, err = NewClient(&config.TranscribeConfig{})
	assert.Error(t, err, "缺少Endpoint应该返回错误")

	client, err := NewClient(testConfig("http://localhost:9999"))
	require.NoError(t, err)
	require.NotNil(t, client)
}

// TestClient_JobName 测试任务名格式
func TestClient_JobName(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	client, err := NewClient(testConfig("http://localhost:9999"),
		WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	assert.Equal(t, "transcription_cand-123_1700000000000", client.JobName("cand-123"))
	assert.Equal(t, "transcripts/cand-123/job-a.json", OutputKey("cand-123", "job-a"))
}

// TestClient_StartJob 测试发起转写任务的请求内容
func TestClient_StartJob(t *testing.T) {
	var received startJobRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/jobs", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	fixed := time.UnixMilli(1700000000000)
	client, err := NewClient(testConfig(server.URL),
		WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	jobName, err := client.StartJob(context.Background(), "cand-1", "http://minio/videos/cand-1/1700000000000.mp4")
	require.NoError(t, err)

	assert.Equal(t, "transcription_cand-1_1700000000000", jobName)
	assert.Equal(t, jobName, received.JobName)
	assert.Equal(t, "mp4", received.MediaFormat)
	assert.Equal(t, "en-US", received.LanguageCode)
	assert.True(t, received.Settings.ShowSpeakerLabels)
	assert.Equal(t, 2, received.Settings.MaxSpeakerLabels)
	assert.Equal(t, 3, received.Settings.MaxAlternatives)
	assert.Equal(t, "transcripts", received.Output.BucketName)
	assert.Equal(t, "transcripts/cand-1/"+jobName+".json", received.Output.ObjectKey)
}

// TestClient_StartJob_EmptyArgs 测试空参数校验
func TestClient_StartJob_EmptyArgs(t *testing.T) {
	client, err := NewClient(testConfig("http://localhost:9999"))
	require.NoError(t, err)

	_, err = client.StartJob(context.Background(), "", "http://media")
	assert.Error(t, err)

	_, err = client.StartJob(context.Background(), "cand-1", "")
	assert.Error(t, err)
}

// TestClient_GetJob 测试任务状态查询
func TestClient_GetJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/job-x", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"job_name":"job-x","status":"COMPLETED","output_key":"transcripts/c/job-x.json"}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	status, err := client.GetJob(context.Background(), "job-x")
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, status.Status)
	assert.Equal(t, "transcripts/c/job-x.json", status.OutputKey)
}

// TestPollWait 测试轮询等待时长的递增和上限
func TestPollWait(t *testing.T) {
	assert.Equal(t, 5*time.Second, pollWait(0))
	assert.Equal(t, 6*time.Second, pollWait(1))
	assert.Equal(t, 14*time.Second, pollWait(9))
	assert.Equal(t, 15*time.Second, pollWait(10))
	assert.Equal(t, 15*time.Second, pollWait(59), "等待时长不应超过15秒上限")
}

// TestClient_WaitForCompletion_ContextCancel 测试上下文取消时轮询立即退出
func TestClient_WaitForCompletion_ContextCancel(t *testing.T) {
	client, err := NewClient(testConfig("http://localhost:9999"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err = client.WaitForCompletion(ctx, "job-y")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "取消后应立即返回，不等待轮询间隔")
}
