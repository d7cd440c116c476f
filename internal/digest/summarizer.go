package digest

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsumugi-bot/tsumugi/internal/buffer"
	"github.com/tsumugi-bot/tsumugi/internal/provider"
)

// Summarizer turns an ordered labeled transcript into a Markdown digest.
type Summarizer interface {
	Summarize(ctx context.Context, fragments []buffer.Fragment, labelGuide []string) (string, error)
}

const summarizeSystemPrompt = `あなたはSlackの会話を整理・要約するアシスタントです。
各メッセージには以下の意味を持つラベルが付いています：
%s

以下のルールに従って整理してください：
- ラベルごとにセクションを分けて Markdown 形式でまとめる
- 重複する内容は統合する
- 箇条書きを活用して読みやすくする
- 全体のサマリーを最初に1〜2文で記載する
- 出力は日本語で行う`

// LLMSummarizer implements Summarizer via a chat-completion provider.
type LLMSummarizer struct {
	llm   provider.LLM
	model string
}

func NewLLMSummarizer(llm provider.LLM, model string) *LLMSummarizer {
	return &LLMSummarizer{llm: llm, model: model}
}

// Summarize sends the label-tagged transcript to the model. Fragments must
// already be in the order the digest should read them in.
func (s *LLMSummarizer) Summarize(ctx context.Context, fragments []buffer.Fragment, labelGuide []string) (string, error) {
	lines := make([]string, 0, len(fragments))
	for _, f := range fragments {
		lines = append(lines, fmt.Sprintf("[%s] %s", f.Label, f.Text))
	}
	guide := make([]string, 0, len(labelGuide))
	for _, label := range labelGuide {
		guide = append(guide, "- "+label)
	}

	resp, err := s.llm.Chat(ctx, &provider.ChatRequest{
		Model:       s.model,
		Temperature: 0.3,
		Messages: []provider.Message{
			{Role: "system", Content: fmt.Sprintf(summarizeSystemPrompt, strings.Join(guide, "\n"))},
			{Role: "user", Content: "以下のSlackメッセージを整理・要約してください：\n\n" + strings.Join(lines, "\n")},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return resp.Content, nil
}
