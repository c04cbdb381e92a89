package generator

import (
	"context"
	"errors"
)

// Agent 用同一个 LLMClient 承担策划、写手、编辑三个角色。
type Agent struct {
	llm LLMClient
}

func NewAgent(llm LLMClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm}, nil
}

// Brief 原样返回策划生成的内容简报。
func (a *Agent) Brief(ctx context.Context, in BriefInput) (string, error) {
	return a.llm.Complete(ctx, BuildBriefPrompt(in))
}

// Write 生成一整批新稿件；rev 非空时按编辑意见重写。
// 调用失败原样返回，解析失败包装为 ErrMalformedResponse。
func (a *Agent) Write(ctx context.Context, brief string, rev *Revision) ([]ContentPiece, error) {
	raw, err := a.llm.Complete(ctx, BuildWriterPrompt(brief, rev))
	if err != nil {
		return nil, err
	}
	return DecodePieces(raw)
}

// Evaluate 让编辑按品牌调性给稿件打分。
func (a *Agent) Evaluate(ctx context.Context, voice string, pieces []ContentPiece) (Scores, error) {
	raw, err := a.llm.Complete(ctx, BuildEditorPrompt(voice, pieces))
	if err != nil {
		return Scores{}, err
	}
	return DecodeScores(raw)
}

// IsMalformed 判断错误来自响应解析而不是网络调用。
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
