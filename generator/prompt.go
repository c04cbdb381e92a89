package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PromptKind 标明提示词属于哪个角色。
type PromptKind string

const (
	KindBrief  PromptKind = "brief"
	KindWriter PromptKind = "writer"
	KindEditor PromptKind = "editor"
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	Kind    PromptKind
	System  string
	User    string
	History []Message
}

// Message 用于少量历史（可选）。
type Message struct {
	Role    string
	Content string
}

// BuildBriefPrompt 生成策划提示词，只要求输出内容简报。
func BuildBriefPrompt(in BriefInput) Prompt {
	var sb strings.Builder
	sb.WriteString("You are the Strategist Agent. Generate ONLY the content brief.\n")
	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString("Content Brief for Writer Agent\n")
	sb.WriteString("1. Key Trending Topics\n")
	sb.WriteString("2. Customer Sentiment Insights\n")
	sb.WriteString("3. Competitor Intelligence\n")
	sb.WriteString("4. Writing Instructions (Message, Tone, Keywords)\n")

	var user strings.Builder
	fmt.Fprintf(&user, "Query: %s\n", in.Query)
	fmt.Fprintf(&user, "Audience: %s\n", in.Audience)
	fmt.Fprintf(&user, "Brand Voice: %s\n", in.Voice)
	if in.Cadence != "" {
		fmt.Fprintf(&user, "Cadence: %s\n", in.Cadence)
	}
	if in.Date != "" {
		fmt.Fprintf(&user, "Date: %s\n", in.Date)
	}
	if in.Trends != "" {
		fmt.Fprintf(&user, "Trending Topics: %s\n", in.Trends)
	}
	if in.Sentiment != "" {
		fmt.Fprintf(&user, "Sentiment: %s\n", in.Sentiment)
	}
	if in.Competitors != "" {
		fmt.Fprintf(&user, "Competitors: %s\n", in.Competitors)
	}
	historical := in.Historical
	if historical == "" {
		historical = "{}"
	}
	fmt.Fprintf(&user, "Historical Performance: %s\n", historical)

	return Prompt{
		Kind:   KindBrief,
		System: sb.String(),
		User:   user.String(),
	}
}

// Revision 描述一次重写：上一轮的稿件和编辑意见。
type Revision struct {
	Notes    string
	Previous []ContentPiece
}

// BuildWriterPrompt 生成写手提示词，要求输出 PieceCount 条 JSON。
// rev 非空表示重写：附上修订要求，并把上一轮稿件作为 assistant 历史带上。
func BuildWriterPrompt(brief string, rev *Revision) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a content generator. Respond with JSON only, no commentary.\n")
	fmt.Fprintf(&sb, "GENERATE EXACTLY %d pieces in JSON array format:\n", PieceCount)
	sb.WriteString("[\n")
	sb.WriteString(`  {"platform": "twitter", "format_type": "thread", "title": "...", "content": "..."},` + "\n")
	sb.WriteString(`  {"platform": "linkedin", "format_type": "post", "title": "...", "content": "..."}` + "\n")
	sb.WriteString("]\n")

	var user strings.Builder
	fmt.Fprintf(&user, "CONTENT BRIEF: %s\n", brief)
	if rev != nil {
		fmt.Fprintf(&user, "REVISION REQUIRED: Fix these issues: %s\n", rev.Notes)
	}

	p := Prompt{
		Kind:   KindWriter,
		System: sb.String(),
		User:   user.String(),
	}
	if rev != nil && len(rev.Previous) > 0 {
		if prev, err := json.Marshal(rev.Previous); err == nil {
			p.History = []Message{{Role: "assistant", Content: string(prev)}}
		}
	}
	return p
}

// BuildEditorPrompt 生成编辑打分提示词（三项分数 + 理由）。
func BuildEditorPrompt(voice string, pieces []ContentPiece) Prompt {
	var sb strings.Builder
	sb.WriteString("Evaluate content. Score each dimension from 0 to 10.\n")
	sb.WriteString("RETURN JSON:\n")
	sb.WriteString(`{"tone_score": number, "fact_score": number, "brand_score": number, "rationale": string}` + "\n")

	var user strings.Builder
	fmt.Fprintf(&user, "BRAND: %s\n", voice)
	user.WriteString("CONTENT:\n")
	for _, p := range pieces {
		fmt.Fprintf(&user, "%s: %s...\n", p.Title, truncateRunes(p.Content, 100))
	}

	return Prompt{
		Kind:   KindEditor,
		System: sb.String(),
		User:   user.String(),
	}
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
