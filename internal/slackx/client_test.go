package slackx

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
)

type fakeAPI struct {
	historyPages [][]slack.Message
	historyCalls int

	replies      []slack.Message
	repliesCalls int

	reactErr error
	reacted  []string

	userErr   error
	user      *slack.User
	userCalls int

	posted []string
}

func (f *fakeAPI) GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	page := f.historyPages[f.historyCalls]
	f.historyCalls++
	resp := &slack.GetConversationHistoryResponse{Messages: page}
	if f.historyCalls < len(f.historyPages) {
		resp.HasMore = true
		resp.ResponseMetaData.NextCursor = "next"
	}
	return resp, nil
}

func (f *fakeAPI) GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	f.repliesCalls++
	return f.replies, false, "", nil
}

func (f *fakeAPI) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.posted = append(f.posted, channelID)
	return channelID, "1.0", nil
}

func (f *fakeAPI) AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error {
	f.reacted = append(f.reacted, name)
	return f.reactErr
}

func (f *fakeAPI) GetUserInfoContext(ctx context.Context, user string) (*slack.User, error) {
	f.userCalls++
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func msg(ts, text string) slack.Message {
	m := slack.Message{}
	m.Timestamp = ts
	m.Text = text
	return m
}

func TestFetchHistoryPaginates(t *testing.T) {
	api := &fakeAPI{historyPages: [][]slack.Message{
		{msg("3.0", "c"), msg("2.0", "b")},
		{msg("1.0", "a")},
	}}
	c := NewWithAPI(api, nil)
	c.SetPageDelay(0)

	msgs, err := c.FetchHistory(context.Background(), "C001", "", "", 0)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages across pages, got %d", len(msgs))
	}
	if api.historyCalls != 2 {
		t.Fatalf("expected 2 pages, got %d", api.historyCalls)
	}
}

func TestFetchHistoryHonorsMax(t *testing.T) {
	api := &fakeAPI{historyPages: [][]slack.Message{
		{msg("3.0", "c"), msg("2.0", "b")},
		{msg("1.0", "a")},
	}}
	c := NewWithAPI(api, nil)
	c.SetPageDelay(0)

	msgs, err := c.FetchHistory(context.Background(), "C001", "", "", 2)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected max to cap at 2, got %d", len(msgs))
	}
	if api.historyCalls != 1 {
		t.Fatalf("should stop paging once max reached, got %d calls", api.historyCalls)
	}
}

func TestFetchMessageMatchesTimestamp(t *testing.T) {
	api := &fakeAPI{replies: []slack.Message{msg("1.0", "parent"), msg("1.5", "reply")}}
	c := NewWithAPI(api, nil)

	got, err := c.FetchMessage(context.Background(), "C001", "1.5")
	if err != nil {
		t.Fatalf("fetch message: %v", err)
	}
	if got.Text != "reply" {
		t.Fatalf("expected the reply, got %q", got.Text)
	}

	if _, err := c.FetchMessage(context.Background(), "C001", "9.9"); err == nil {
		t.Fatalf("missing timestamp must error")
	}
}

func TestAddReactionAlreadyReactedIsOK(t *testing.T) {
	api := &fakeAPI{reactErr: errors.New("already_reacted")}
	c := NewWithAPI(api, nil)

	if err := c.AddReaction(context.Background(), "C001", "1.0", "white_check_mark"); err != nil {
		t.Fatalf("already_reacted should not surface: %v", err)
	}

	api.reactErr = errors.New("channel_not_found")
	if err := c.AddReaction(context.Background(), "C001", "1.0", "white_check_mark"); err == nil {
		t.Fatalf("real reaction errors must surface")
	}
}

func TestDisplayNameCachesAndFallsBack(t *testing.T) {
	user := &slack.User{}
	user.Profile.DisplayName = "つむぎ"
	api := &fakeAPI{user: user}
	c := NewWithAPI(api, nil)

	if got := c.DisplayName(context.Background(), "U001"); got != "つむぎ" {
		t.Fatalf("expected display name, got %q", got)
	}
	if got := c.DisplayName(context.Background(), "U001"); got != "つむぎ" {
		t.Fatalf("cached lookup changed: %q", got)
	}
	if api.userCalls != 1 {
		t.Fatalf("expected one users API call, got %d", api.userCalls)
	}

	api.userErr = errors.New("user_not_found")
	if got := c.DisplayName(context.Background(), "U404"); got != "U404" {
		t.Fatalf("failed lookup should fall back to the raw id, got %q", got)
	}
}

func TestPermalink(t *testing.T) {
	got := Permalink("C001", "1700000000.000100")
	want := "https://app.slack.com/archives/C001/p1700000000000100"
	if got != want {
		t.Fatalf("permalink: want %q, got %q", want, got)
	}
}
