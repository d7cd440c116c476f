package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tsumugi-bot/tsumugi/internal/buffer"
	"github.com/tsumugi-bot/tsumugi/internal/slackx"
)

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	if err := verifySlackSignature(body, r.Header, s.signingSecret, time.Now()); err != nil {
		http.Error(w, "invalid slack signature", http.StatusUnauthorized)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch asString(payload["type"]) {
	case "url_verification":
		_ = json.NewEncoder(w).Encode(map[string]any{"challenge": asString(payload["challenge"])})
	case "event_callback":
		if eventID := asString(payload["event_id"]); eventID != "" && s.seenEvent(eventID, time.Now()) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "deduped": true})
			return
		}
		if event, ok := payload["event"].(map[string]any); ok {
			// Ack immediately; flushes call the LLM and Notion and
			// would outlast Slack's delivery timeout.
			go s.dispatchEvent(context.Background(), event)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (s *Server) dispatchEvent(ctx context.Context, event map[string]any) {
	switch asString(event["type"]) {
	case "reaction_added":
		item, _ := event["item"].(map[string]any)
		if item == nil || asString(item["type"]) != "message" {
			return
		}
		s.handleReactionAdded(ctx, asString(item["channel"]), asString(item["ts"]), asString(event["reaction"]))
	case "message":
		if asString(event["subtype"]) != "" || asString(event["bot_id"]) != "" {
			return
		}
		s.handleMessage(ctx, asString(event["channel"]), asString(event["user"]), asString(event["ts"]), asString(event["text"]))
	}
}

// handleReactionAdded routes one reaction: flush triggers first, then the
// thread collector, then plain label buffering.
func (s *Server) handleReactionAdded(ctx context.Context, channel, ts, reaction string) {
	if channel == "" || ts == "" || reaction == "" {
		return
	}

	switch reaction {
	case s.rules.ChannelTriggerReaction:
		result := s.digester.FlushChannel(ctx, channel)
		s.logger.Info("channel flush", "channel", channel, "status", result.Status, "fragments", result.Fragments)
		return
	case s.rules.TriggerReaction:
		key := buffer.Key{Channel: channel, ThreadRoot: s.threadRoot(ctx, channel, ts)}
		result := s.digester.FlushThread(ctx, key)
		s.logger.Info("thread flush", "key", key.String(), "status", result.Status, "fragments", result.Fragments)
		return
	case s.rules.ThreadCollectReaction:
		s.collectThread(ctx, channel, ts)
		return
	}

	label, ok := s.rules.Reactions[reaction]
	if !ok {
		return
	}
	msg, err := s.source.FetchMessage(ctx, channel, ts)
	if err != nil {
		s.logger.Warn("message fetch failed", "channel", channel, "ts", ts, "error", err)
		return
	}
	key := buffer.Key{Channel: channel, ThreadRoot: threadRootOf(msg)}
	s.digester.Buffer(key, buffer.Fragment{
		Label:     label,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
		Author:    msg.User,
	})
	s.logger.Info("buffered fragment", "key", key.String(), "label", label)
}

// collectThread buffers a whole thread, root included, under the
// configured collect label.
func (s *Server) collectThread(ctx context.Context, channel, ts string) {
	root := s.threadRoot(ctx, channel, ts)
	msgs, err := s.source.FetchThreadReplies(ctx, channel, root)
	if err != nil {
		s.logger.Warn("thread fetch failed", "channel", channel, "ts", root, "error", err)
		return
	}
	key := buffer.Key{Channel: channel, ThreadRoot: root}
	added := 0
	for _, m := range msgs {
		if m.SubType != "" || m.Text == "" {
			continue
		}
		s.digester.Buffer(key, buffer.Fragment{
			Label:     s.rules.ThreadCollectLabel,
			Text:      m.Text,
			Timestamp: m.Timestamp,
			Author:    m.User,
		})
		added++
	}
	s.logger.Info("collected thread", "key", key.String(), "messages", added)
}

func (s *Server) handleMessage(ctx context.Context, channel, userID, ts, text string) {
	if s.reports == nil || !s.rules.Watched(channel) {
		return
	}
	result := s.reports.HandleMessage(ctx, channel, userID, ts, text)
	if result.Outcome != "" {
		s.logger.Info("report scan", "channel", channel, "ts", ts, "outcome", result.Outcome, "written", result.Written)
	}
}

// threadRoot resolves the aggregation root for a message: its thread
// parent when threaded, otherwise the message itself.
func (s *Server) threadRoot(ctx context.Context, channel, ts string) string {
	msg, err := s.source.FetchMessage(ctx, channel, ts)
	if err != nil {
		s.logger.Warn("message fetch failed", "channel", channel, "ts", ts, "error", err)
		return ts
	}
	return threadRootOf(msg)
}

func threadRootOf(m slackx.Message) string {
	if m.ThreadTimestamp != "" {
		return m.ThreadTimestamp
	}
	return m.Timestamp
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
