package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedResponse 表示模型输出不符合约定的 JSON 结构。
var ErrMalformedResponse = errors.New("malformed model response")

type pieceWire struct {
	Platform   *string `json:"platform"`
	FormatType *string `json:"format_type"`
	Title      *string `json:"title"`
	Content    *string `json:"content"`
}

type scoresWire struct {
	Tone      *float64 `json:"tone_score"`
	Fact      *float64 `json:"fact_score"`
	Brand     *float64 `json:"brand_score"`
	Rationale *string  `json:"rationale"`
}

// DecodePieces 解析写手输出：JSON 数组，每项只能包含
// platform、format_type、title、content 四个字段。
func DecodePieces(raw string) ([]ContentPiece, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	var items []pieceWire
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after array", ErrMalformedResponse)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no content pieces", ErrMalformedResponse)
	}

	pieces := make([]ContentPiece, 0, len(items))
	for i, it := range items {
		if it.Platform == nil || it.FormatType == nil || it.Title == nil || it.Content == nil {
			return nil, fmt.Errorf("%w: item %d missing required field", ErrMalformedResponse, i)
		}
		pieces = append(pieces, ContentPiece{
			Platform:   *it.Platform,
			Title:      *it.Title,
			Content:    *it.Content,
			FormatType: *it.FormatType,
		})
	}
	return pieces, nil
}

// DecodeScores 解析编辑输出。三项分数必填，rationale 可选。
func DecodeScores(raw string) (Scores, error) {
	body := stripFences(raw)
	if body == "" {
		return Scores{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	var w scoresWire
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Scores{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if w.Tone == nil || w.Fact == nil || w.Brand == nil {
		return Scores{}, fmt.Errorf("%w: missing score field", ErrMalformedResponse)
	}
	if sum := *w.Tone + *w.Fact + *w.Brand; math.IsInf(sum, 0) || math.IsNaN(sum) {
		return Scores{}, fmt.Errorf("%w: scores out of range", ErrMalformedResponse)
	}
	s := Scores{Tone: *w.Tone, Fact: *w.Fact, Brand: *w.Brand}
	if w.Rationale != nil {
		s.Rationale = *w.Rationale
	}
	return s, nil
}

// stripFences 去掉模型常包在 JSON 外面的 markdown 代码块标记。
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
