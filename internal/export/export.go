// Package export dumps channel history, threads expanded, into a CSV
// file suitable for spreadsheet review.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/tsumugi-bot/tsumugi/internal/slackx"
)

// Source provides the history and thread reads the export walks.
type Source interface {
	FetchHistory(ctx context.Context, channel, oldest, latest string, max int) ([]slackx.Message, error)
	FetchThreadReplies(ctx context.Context, channel, threadTS string) ([]slackx.Message, error)
}

// NameResolver resolves a user id to a display name.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) string
}

// Row is one CSV line of the export.
type Row struct {
	Datetime string
	UserName string
	Text     string
	ThreadID string
	URL      string
}

// Options carries the collaborators for New.
type Options struct {
	Source Source
	Names  NameResolver
}

type Exporter struct {
	source Source
	names  NameResolver
}

func New(opts Options) *Exporter {
	return &Exporter{source: opts.Source, names: opts.Names}
}

// Collect gathers every channel message since the given date (YYYY-MM-DD,
// UTC midnight), pulls the replies of each threaded parent, and returns
// rows sorted oldest first.
func (e *Exporter) Collect(ctx context.Context, channel, since string) ([]Row, error) {
	oldest, err := sinceTimestamp(since)
	if err != nil {
		return nil, err
	}

	history, err := e.source.FetchHistory(ctx, channel, oldest, "", 0)
	if err != nil {
		return nil, err
	}

	var msgs []slackx.Message
	for _, m := range history {
		msgs = append(msgs, m)
		if m.ReplyCount == 0 {
			continue
		}
		replies, err := e.source.FetchThreadReplies(ctx, channel, m.Timestamp)
		if err != nil {
			return nil, err
		}
		// The parent comes back first; the history row already covers it.
		if len(replies) > 0 {
			msgs = append(msgs, replies[1:]...)
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return tsValue(msgs[i].Timestamp) < tsValue(msgs[j].Timestamp)
	})

	rows := make([]Row, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, e.row(ctx, channel, m))
	}
	return rows, nil
}

func (e *Exporter) row(ctx context.Context, channel string, m slackx.Message) Row {
	name := m.User
	if e.names != nil && m.User != "" {
		name = e.names.DisplayName(ctx, m.User)
	}
	url := slackx.Permalink(channel, m.Timestamp)
	threadID := ""
	if m.ThreadTimestamp != "" {
		threadID = m.ThreadTimestamp
		if m.ThreadTimestamp != m.Timestamp {
			// Replies need the thread context to open in place.
			url += "?thread_ts=" + m.ThreadTimestamp + "&cid=" + channel
		}
	}
	return Row{
		Datetime: messageTime(m.Timestamp),
		UserName: name,
		Text:     m.Text,
		ThreadID: threadID,
		URL:      url,
	}
}

// WriteCSV writes the header and rows, prefixed with a UTF-8 BOM so
// spreadsheet imports keep Japanese text intact.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"datetime", "user_name", "message_text", "thread_id", "message_url"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Datetime, r.UserName, r.Text, r.ThreadID, r.URL}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DefaultOutput names the export file for a channel and start date.
func DefaultOutput(channel, since string) string {
	return fmt.Sprintf("export-%s-%s.csv", channel, since)
}

func sinceTimestamp(since string) (string, error) {
	t, err := time.Parse("2006-01-02", since)
	if err != nil {
		return "", fmt.Errorf("invalid --since date %q, want YYYY-MM-DD", since)
	}
	return strconv.FormatInt(t.UTC().Unix(), 10) + ".000000", nil
}

func tsValue(ts string) float64 {
	v, _ := strconv.ParseFloat(ts, 64)
	return v
}

func messageTime(ts string) string {
	v, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return ts
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("2006-01-02 15:04:05")
}
