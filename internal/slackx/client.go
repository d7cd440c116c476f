// Package slackx wraps the Slack Web API calls the gateway and backfill
// need: history and thread pagination, posting, reactions and display
// name lookup.
package slackx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
)

const (
	defaultAPIBase  = "https://slack.com/api"
	defaultPageSize = 200
)

// Message is the slice of a Slack message the pipelines care about.
type Message struct {
	Timestamp       string
	ThreadTimestamp string
	User            string
	Text            string
	SubType         string
	BotID           string
	ReplyCount      int
}

// webAPI is the part of slack.Client the wrapper uses.
type webAPI interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// Client wraps the Slack Web API with pagination and a display name cache.
type Client struct {
	api       webAPI
	logger    *slog.Logger
	pageDelay time.Duration

	mu    sync.Mutex
	names map[string]string
}

// New builds a client from a bot token.
func New(token, apiBase string, logger *slog.Logger) *Client {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		base = defaultAPIBase
	}
	base = strings.TrimRight(base, "/") + "/"
	api := slack.New(token, slack.OptionAPIURL(base))
	return NewWithAPI(api, logger)
}

// NewWithAPI builds a client around an existing API implementation.
func NewWithAPI(api webAPI, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:       api,
		logger:    logger,
		pageDelay: 200 * time.Millisecond,
		names:     map[string]string{},
	}
}

// SetPageDelay overrides the pause between history pages.
func (c *Client) SetPageDelay(d time.Duration) { c.pageDelay = d }

// FetchHistory pages through channel history between oldest and latest
// (either may be empty) up to max messages. Messages come back newest
// first, as the API delivers them.
func (c *Client) FetchHistory(ctx context.Context, channel, oldest, latest string, max int) ([]Message, error) {
	var out []Message
	cursor := ""
	for {
		limit := defaultPageSize
		if max > 0 && max-len(out) < limit {
			limit = max - len(out)
		}
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channel,
			Cursor:    cursor,
			Limit:     limit,
			Oldest:    oldest,
			Latest:    latest,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch history for %s: %w", channel, err)
		}
		for _, m := range resp.Messages {
			out = append(out, fromSlackMessage(m))
		}
		if max > 0 && len(out) >= max {
			return out[:max], nil
		}
		cursor = strings.TrimSpace(resp.ResponseMetaData.NextCursor)
		if !resp.HasMore || cursor == "" {
			return out, nil
		}
		if c.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pageDelay):
			}
		}
	}
}

// FetchThreadReplies pages through a thread. The parent message is
// included first.
func (c *Client) FetchThreadReplies(ctx context.Context, channel, threadTS string) ([]Message, error) {
	var out []Message
	cursor := ""
	for {
		msgs, hasMore, next, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: threadTS,
			Cursor:    cursor,
			Limit:     defaultPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch thread %s/%s: %w", channel, threadTS, err)
		}
		for _, m := range msgs {
			out = append(out, fromSlackMessage(m))
		}
		cursor = strings.TrimSpace(next)
		if !hasMore || cursor == "" {
			return out, nil
		}
		if c.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pageDelay):
			}
		}
	}
}

// FetchMessage resolves a single message by timestamp. conversations.replies
// accepts both thread parents and replies, so one call covers messages
// anywhere in the channel.
func (c *Client) FetchMessage(ctx context.Context, channel, ts string) (Message, error) {
	msgs, _, _, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channel,
		Timestamp: ts,
		Limit:     3,
		Inclusive: true,
	})
	if err != nil {
		return Message{}, fmt.Errorf("fetch message %s/%s: %w", channel, ts, err)
	}
	for _, m := range msgs {
		if m.Timestamp == ts {
			return fromSlackMessage(m), nil
		}
	}
	return Message{}, fmt.Errorf("message %s not found in %s", ts, channel)
}

// PostMessage posts text, threaded when threadTS is set.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if ts := strings.TrimSpace(threadTS); ts != "" {
		opts = append(opts, slack.MsgOptionTS(ts))
	}
	if _, _, err := c.api.PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("post message to %s: %w", channel, err)
	}
	return nil
}

// AddReaction marks a message with an emoji. A reaction the bot already
// placed is not an error.
func (c *Client) AddReaction(ctx context.Context, channel, ts, emoji string) error {
	err := c.api.AddReactionContext(ctx, emoji, slack.ItemRef{Channel: channel, Timestamp: ts})
	if err != nil && err.Error() != "already_reacted" {
		return fmt.Errorf("add reaction %s to %s/%s: %w", emoji, channel, ts, err)
	}
	return nil
}

// DisplayName resolves a user ID to a human name, cached for the process
// lifetime. Lookup failures fall back to the raw ID so writes never block
// on the users API.
func (c *Client) DisplayName(ctx context.Context, userID string) string {
	c.mu.Lock()
	if name, ok := c.names[userID]; ok {
		c.mu.Unlock()
		return name
	}
	c.mu.Unlock()

	name := userID
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		c.logger.Warn("user lookup failed", "user", userID, "error", err)
	} else {
		switch {
		case user.Profile.DisplayName != "":
			name = user.Profile.DisplayName
		case user.RealName != "":
			name = user.RealName
		case user.Name != "":
			name = user.Name
		}
	}

	c.mu.Lock()
	c.names[userID] = name
	c.mu.Unlock()
	return name
}

// Permalink renders the canonical archive URL for a message.
func Permalink(channel, ts string) string {
	return "https://app.slack.com/archives/" + channel + "/p" + strings.ReplaceAll(ts, ".", "")
}

func fromSlackMessage(m slack.Message) Message {
	return Message{
		Timestamp:       m.Timestamp,
		ThreadTimestamp: m.ThreadTimestamp,
		User:            m.User,
		Text:            m.Text,
		SubType:         m.SubType,
		BotID:           m.BotID,
		ReplyCount:      m.ReplyCount,
	}
}
