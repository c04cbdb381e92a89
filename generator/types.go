package generator

// ContentPiece 是一条生成的内容（推文、帖子、邮件等）。
// 每轮修订整体替换整批稿件。
type ContentPiece struct {
	Platform   string `json:"platform"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	FormatType string `json:"format_type"`
}

// Scores 编辑的原始打分，总分与结论由 workflow 推导。
type Scores struct {
	Tone      float64 `json:"tone_score"`
	Fact      float64 `json:"fact_score"`
	Brand     float64 `json:"brand_score"`
	Rationale string  `json:"rationale"`
}

// BriefInput 策划提示词需要的全部输入，调研与历史数据已序列化为 JSON。
type BriefInput struct {
	Query       string
	Audience    string
	Voice       string
	Cadence     string
	Date        string
	Historical  string
	Trends      string
	Sentiment   string
	Competitors string
}

// PieceCount 每轮要求写手生成的稿件数量。
const PieceCount = 5
