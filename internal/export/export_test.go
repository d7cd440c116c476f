package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tsumugi-bot/tsumugi/internal/slackx"
)

type fakeSource struct {
	history     []slackx.Message
	threads     map[string][]slackx.Message
	oldest      string
	threadCalls []string
}

func (f *fakeSource) FetchHistory(_ context.Context, _, oldest, _ string, _ int) ([]slackx.Message, error) {
	f.oldest = oldest
	return f.history, nil
}

func (f *fakeSource) FetchThreadReplies(_ context.Context, _, threadTS string) ([]slackx.Message, error) {
	f.threadCalls = append(f.threadCalls, threadTS)
	return f.threads[threadTS], nil
}

type fakeNames struct{}

func (fakeNames) DisplayName(_ context.Context, userID string) string { return "名前:" + userID }

func TestCollectExpandsThreadsAndSorts(t *testing.T) {
	// History comes back newest first, parents only.
	source := &fakeSource{
		history: []slackx.Message{
			{Timestamp: "1700000300.000000", User: "U2", Text: "standalone"},
			{Timestamp: "1700000100.000000", User: "U1", Text: "parent", ReplyCount: 2},
		},
		threads: map[string][]slackx.Message{
			"1700000100.000000": {
				{Timestamp: "1700000100.000000", ThreadTimestamp: "1700000100.000000", User: "U1", Text: "parent"},
				{Timestamp: "1700000200.000000", ThreadTimestamp: "1700000100.000000", User: "U3", Text: "reply"},
				{Timestamp: "1700000400.000000", ThreadTimestamp: "1700000100.000000", User: "U1", Text: "late reply"},
			},
		},
	}
	exp := New(Options{Source: source, Names: fakeNames{}})

	rows, err := exp.Collect(context.Background(), "C001", "2023-11-14")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if source.oldest != "1699920000.000000" {
		t.Fatalf("since date not converted to oldest, got %q", source.oldest)
	}
	if len(source.threadCalls) != 1 || source.threadCalls[0] != "1700000100.000000" {
		t.Fatalf("only threaded parents expand, got %v", source.threadCalls)
	}

	// Parent appears once, replies woven in, oldest first.
	want := []string{"parent", "reply", "standalone", "late reply"}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d: %+v", len(want), len(rows), rows)
	}
	for i, text := range want {
		if rows[i].Text != text {
			t.Fatalf("row %d: want %q, got %q", i, text, rows[i].Text)
		}
	}
	if rows[0].UserName != "名前:U1" {
		t.Fatalf("user not resolved to display name: %q", rows[0].UserName)
	}
}

func TestCollectReplyURLCarriesThreadContext(t *testing.T) {
	source := &fakeSource{
		history: []slackx.Message{
			{Timestamp: "10.000000", User: "U1", Text: "parent", ReplyCount: 1},
		},
		threads: map[string][]slackx.Message{
			"10.000000": {
				{Timestamp: "10.000000", ThreadTimestamp: "10.000000", User: "U1", Text: "parent"},
				{Timestamp: "11.000000", ThreadTimestamp: "10.000000", User: "U2", Text: "reply"},
			},
		},
	}
	exp := New(Options{Source: source})

	rows, err := exp.Collect(context.Background(), "C001", "1970-01-01")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if strings.Contains(rows[0].URL, "?thread_ts=") {
		t.Fatalf("parent URL must not carry thread context: %q", rows[0].URL)
	}
	if !strings.HasSuffix(rows[1].URL, "?thread_ts=10.000000&cid=C001") {
		t.Fatalf("reply URL missing thread context: %q", rows[1].URL)
	}
	if rows[1].ThreadID != "10.000000" {
		t.Fatalf("reply thread id: %q", rows[1].ThreadID)
	}
}

func TestCollectRejectsBadSinceDate(t *testing.T) {
	exp := New(Options{Source: &fakeSource{}})
	if _, err := exp.Collect(context.Background(), "C001", "last week"); err == nil {
		t.Fatalf("malformed since date must fail")
	}
}

func TestWriteCSVHasBOMAndHeader(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{
		{Datetime: "2023-11-14 22:15:00", UserName: "山田", Text: "改行\nあり", ThreadID: "", URL: "https://app.slack.com/archives/C001/p10000000"},
	}
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatalf("output must start with a UTF-8 BOM")
	}
	body := string(out[3:])
	if !strings.HasPrefix(body, "datetime,user_name,message_text,thread_id,message_url\n") {
		t.Fatalf("unexpected header: %q", body)
	}
	if !strings.Contains(body, "\"改行\nあり\"") {
		t.Fatalf("multiline text must be quoted: %q", body)
	}
}

func TestDefaultOutput(t *testing.T) {
	if got := DefaultOutput("C001", "2023-11-14"); got != "export-C001-2023-11-14.csv" {
		t.Fatalf("unexpected default output %q", got)
	}
}
