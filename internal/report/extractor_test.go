package report

import (
	"context"
	"errors"
	"testing"

	"github.com/tsumugi-bot/tsumugi/internal/provider"
)

type stubLLM struct {
	content string
	err     error
	lastReq *provider.ChatRequest
}

func (s *stubLLM) Chat(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &provider.ChatResponse{Content: s.content}, nil
}

func (s *stubLLM) DefaultModel() string { return "stub" }

func TestExtractParsesItemsEnvelope(t *testing.T) {
	llm := &stubLLM{content: `{"items":[
		{"customer":"サンプル食品","product":"豆腐ハンバーグ","type":"bracket_missing","detail":"【大豆】を追記","allergen":"大豆"},
		{"customer":"","product":"コロッケ","type":"tag_error","detail":"タグ誤認識","allergen":null}
	]}`}
	e := NewExtractor(llm, "gpt-4o-mini")

	items, err := e.Extract(context.Background(), "text", "山田")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Customer != "サンプル食品" || items[0].Kind != KindBracketMissing || items[0].Allergen != "大豆" {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[0].Reporter != "山田" || items[1].Reporter != "山田" {
		t.Fatalf("reporter not attributed")
	}
	if items[1].Customer != "不明" {
		t.Fatalf("empty customer should default to 不明, got %q", items[1].Customer)
	}
	if items[1].Allergen != "" {
		t.Fatalf("null allergen should be empty, got %q", items[1].Allergen)
	}

	if !llm.lastReq.JSONObject {
		t.Fatalf("extraction must request JSON object output")
	}
	if llm.lastReq.Temperature != 0 {
		t.Fatalf("extraction must run at temperature 0")
	}
}

func TestExtractToleratesAlternateShapes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"reports key", `{"reports":[{"customer":"A","product":"B","type":"info","detail":"x"}]}`, 1},
		{"bare array", `[{"customer":"A","product":"B","type":"info","detail":"x"}]`, 1},
		{"empty items", `{"items":[]}`, 0},
		{"malformed", `not json at all`, 0},
		{"wrong shape", `{"foo":1}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(&stubLLM{content: tt.content}, "")
			items, err := e.Extract(context.Background(), "text", "u")
			if err != nil {
				t.Fatalf("malformed output must not error: %v", err)
			}
			if len(items) != tt.want {
				t.Fatalf("want %d items, got %d", tt.want, len(items))
			}
		})
	}
}

func TestExtractDefaultsUnknownKindToInfo(t *testing.T) {
	e := NewExtractor(&stubLLM{content: `{"items":[{"customer":"A","product":"B","type":"mystery","detail":"x"}]}`}, "")
	items, err := e.Extract(context.Background(), "text", "u")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if items[0].Kind != KindInfo {
		t.Fatalf("unknown kind should fall back to info, got %s", items[0].Kind)
	}
}

func TestExtractSurfacesTransportError(t *testing.T) {
	e := NewExtractor(&stubLLM{err: errors.New("timeout")}, "")
	if _, err := e.Extract(context.Background(), "text", "u"); err == nil {
		t.Fatalf("transport failure should surface as error")
	}
}
