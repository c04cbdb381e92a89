package generator

import (
	"context"
	"fmt"
	"strings"
)

// MockLLM 一个固定输出的占位实现，便于本地调试，不调用外部模型。
// 所有回答都能被解析，编辑打分固定 9/9/9（直接通过）。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	switch prompt.Kind {
	case KindWriter:
		return mockPieces(), nil
	case KindEditor:
		return `{"tone_score": 9, "fact_score": 9, "brand_score": 9, "rationale": "On brand and accurate."}`, nil
	default:
		var sb strings.Builder
		sb.WriteString("Content Brief for Writer Agent\n\n")
		sb.WriteString("Based on the following context:\n\n")
		sb.WriteString(prompt.User)
		return sb.String(), nil
	}
}

func mockPieces() string {
	platforms := [PieceCount][2]string{
		{"twitter", "thread"},
		{"linkedin", "post"},
		{"instagram", "caption"},
		{"email", "newsletter"},
		{"blog", "article"},
	}
	items := make([]string, 0, PieceCount)
	for i, p := range platforms {
		items = append(items, fmt.Sprintf(
			`{"platform": %q, "format_type": %q, "title": "Sample %d", "content": "Draft body %d for %s."}`,
			p[0], p[1], i+1, i+1, p[0],
		))
	}
	return "```json\n[" + strings.Join(items, ",\n") + "]\n```"
}
