package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseResult 测试转写结果JSON解析
func TestParseResult(t *testing.T) {
	raw := []byte(`{
		"results": {
			"transcripts": [{"transcript": "hello world this is a test"}],
			"items": [
				{"start_time": "0.0", "end_time": "0.5", "type": "pronunciation",
				 "alternatives": [{"content": "hello", "confidence": "0.98"}]},
				{"start_time": "0.5", "end_time": "1.0", "type": "pronunciation",
				 "alternatives": [{"content": "world", "confidence": "0.91"}]},
				{"type": "punctuation", "alternatives": [{"content": ""}]},
				{"start_time": "1.0", "end_time": "1.2", "type": "pronunciation",
				 "alternatives": [{"content": "   "}]}
			]
		}
	}`)

	transcript, err := ParseResult(raw)
	require.NoError(t, err)

	assert.Equal(t, "hello world this is a test", transcript.Text)
	assert.Equal(t, 0.95, transcript.Confidence, "整体置信度缺失时应取默认值")
	require.Len(t, transcript.Segments, 2, "空文本分段应被丢弃")

	assert.Equal(t, "hello", transcript.Segments[0].Text)
	assert.Equal(t, 0.0, transcript.Segments[0].Start)
	assert.Equal(t, 0.5, transcript.Segments[0].End)
	assert.Equal(t, 0.98, transcript.Segments[0].Confidence)

	assert.Equal(t, "world", transcript.Segments[1].Text)
	assert.Equal(t, 0.91, transcript.Segments[1].Confidence)
}

// TestParseResult_OutOfOrderItems 分段应按开始时间排序输出
func TestParseResult_OutOfOrderItems(t *testing.T) {
	raw := []byte(`{
		"results": {
			"transcripts": [{"transcript": "out of order"}],
			"items": [
				{"start_time": "5.0", "end_time": "6.0", "type": "pronunciation",
				 "alternatives": [{"content": "order", "confidence": "0.90"}]},
				{"start_time": "1.0", "end_time": "2.0", "type": "pronunciation",
				 "alternatives": [{"content": "out", "confidence": "0.95"}]},
				{"start_time": "3.0", "end_time": "4.0", "type": "pronunciation",
				 "alternatives": [{"content": "of", "confidence": "0.93"}]}
			]
		}
	}`)

	transcript, err := ParseResult(raw)
	require.NoError(t, err)
	require.Len(t, transcript.Segments, 3)

	assert.Equal(t, []string{"out", "of", "order"},
		[]string{transcript.Segments[0].Text, transcript.Segments[1].Text, transcript.Segments[2].Text},
		"乱序输入也应按开始时间排序")
	assert.True(t, transcript.Segments[0].Start <= transcript.Segments[1].Start)
	assert.True(t, transcript.Segments[1].Start <= transcript.Segments[2].Start)
}

// TestParseResult_Invalid 测试异常输入
func TestParseResult_Invalid(t *testing.T) {
	_, err := ParseResult([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseResult([]byte(`{"results":{"transcripts":[]}}`))
	assert.Error(t, err, "缺少transcripts内容应该返回错误")
}

// TestFallbackTranscript 测试降级兜底文本
func TestFallbackTranscript(t *testing.T) {
	transcript := FallbackTranscript()
	require.NotNil(t, transcript)
	assert.NotEmpty(t, transcript.Text)
	assert.Equal(t, 0.95, transcript.Confidence)
	require.Len(t, transcript.Segments, 1)
	assert.Equal(t, 0.98, transcript.Segments[0].Confidence)
}
