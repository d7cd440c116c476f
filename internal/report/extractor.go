package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tsumugi-bot/tsumugi/internal/provider"
)

// Kind classifies one extracted report item.
type Kind string

const (
	KindBracketMissing Kind = "bracket_missing"
	KindTagError       Kind = "tag_error"
	KindAllergenLeak   Kind = "allergen_leak"
	KindStatusChange   Kind = "status_change"
	KindQuestion       Kind = "question"
	KindInfo           Kind = "info"
)

func validKind(k Kind) bool {
	switch k {
	case KindBracketMissing, KindTagError, KindAllergenLeak, KindStatusChange, KindQuestion, KindInfo:
		return true
	}
	return false
}

// Item is one structured incident record extracted from a message. Written
// at most once downstream, keyed by the source message permalink.
type Item struct {
	Customer string `json:"customer"`
	Product  string `json:"product"`
	Kind     Kind   `json:"type"`
	Detail   string `json:"detail"`
	Allergen string `json:"allergen,omitempty"` // empty when no regulated allergen applies
	Reporter string `json:"reporter"`
}

const extractSystemPrompt = `あなたはSlackの確定作業チャンネルの投稿を構造化するアシスタントです。
食品アレルギー判定の確定作業における報告メッセージを解析し、個別の報告アイテムに分解してください。

## 報告の種別（type）
- bracket_missing: 【】（親切表示/アレルギー別記）の記載漏れ・追記
- tag_error: AIタグの誤認識（間違ったアレルゲンが付く、タグが付かない等）
- allergen_leak: アレルゲンの漏れ（【】以外の理由でアレルゲンが抜けている）
- status_change: ステータス変更（要確認で返却、問い合わせ依頼等）
- question: 質問・相談
- info: 情報共有・その他

## 出力形式
{ "items": [ { "customer": "顧客名", "product": "商品名", "type": "種別", "detail": "1文の説明", "allergen": "アレルゲン名またはnull" } ] }

## ルール
- 1つのメッセージに複数の報告が含まれる場合、それぞれ別のアイテムにする
- 「作業完了しました」「報告です」等の挨拶部分はスキップ
- 顧客名が省略されている商品は、直前に登場した顧客名を引き継ぐ
- 顧客名が最後まで不明な場合のみ"不明"とする
- allergenは食品表示法の義務・推奨アレルゲン品目（卵・乳・小麦・えび・かに・落花生・そば・くるみ・いくら・キウイフルーツ・牛肉・豚肉・鶏肉・さけ・大豆・ごま等）のみ。きのこ・野菜カテゴリ等はnull
- 雑談・挨拶のみ・知識を問う質問・フィードバック意見・シフト代行依頼は items=[] で返す`

// Extractor turns a qualifying message into zero or more Items via a
// JSON-constrained model call.
type Extractor struct {
	llm   provider.LLM
	model string
}

func NewExtractor(llm provider.LLM, model string) *Extractor {
	return &Extractor{llm: llm, model: model}
}

// rawItem tolerates both string and null allergen values from the model.
type rawItem struct {
	Customer string  `json:"customer"`
	Product  string  `json:"product"`
	Type     string  `json:"type"`
	Detail   string  `json:"detail"`
	Allergen *string `json:"allergen"`
}

// Extract asks the model to decompose text into report items attributed to
// reporterName. Malformed model output degrades to an empty list; only
// transport-level failures surface as errors.
func (e *Extractor) Extract(ctx context.Context, text, reporterName string) ([]Item, error) {
	resp, err := e.llm.Chat(ctx, &provider.ChatRequest{
		Model:       e.model,
		Temperature: 0,
		JSONObject:  true,
		Messages: []provider.Message{
			{Role: "system", Content: extractSystemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return normalizeItems(resp.Content, reporterName), nil
}

// normalizeItems parses model output and applies field defaults. Accepts the
// documented {"items": [...]} envelope, a legacy {"reports": [...]} key, or
// a bare array. Anything unparsable yields no items.
func normalizeItems(content, reporterName string) []Item {
	content = strings.TrimSpace(content)

	var raw []rawItem
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		var envelope struct {
			Items   []rawItem `json:"items"`
			Reports []rawItem `json:"reports"`
		}
		if err := json.Unmarshal([]byte(content), &envelope); err != nil {
			return nil
		}
		raw = envelope.Items
		if len(raw) == 0 {
			raw = envelope.Reports
		}
	}

	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		item := Item{
			Customer: r.Customer,
			Product:  r.Product,
			Kind:     Kind(r.Type),
			Detail:   r.Detail,
			Reporter: reporterName,
		}
		if item.Customer == "" {
			item.Customer = "不明"
		}
		if item.Product == "" {
			item.Product = "不明"
		}
		if !validKind(item.Kind) {
			item.Kind = KindInfo
		}
		if r.Allergen != nil {
			item.Allergen = strings.TrimSpace(*r.Allergen)
		}
		items = append(items, item)
	}
	return items
}
