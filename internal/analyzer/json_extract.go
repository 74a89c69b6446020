package analyzer

import "strings"

// extractJSONObject 从LLM响应文本中提取第一个完整的JSON对象
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// extractJSONArray 从LLM响应文本中提取第一个完整的JSON数组
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '[' {
			level++
		} else if text[i] == ']' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
