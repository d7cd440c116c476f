// Package digest turns buffered, labeled Slack fragments into Notion
// documents when a trigger reaction fires.
package digest

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tsumugi-bot/tsumugi/internal/buffer"
)

// DocumentStore is the document side of a flush.
type DocumentStore interface {
	CreateDocument(ctx context.Context, title, markdown string) (ArtifactRef, error)
	AppendToDocument(ctx context.Context, externalID, markdown string) error
}

// Notifier posts the user-visible completion notice back into the channel.
type Notifier interface {
	PostMessage(ctx context.Context, channel, text string) error
}

// FlushJournal records flush outcomes for operations. Best effort; a journal
// failure never affects the flush itself.
type FlushJournal interface {
	RecordFlush(flushID, key string, fragments int, status, artifactURL string) error
}

// FlushStatus classifies how a flush attempt ended.
type FlushStatus string

const (
	FlushCompleted    FlushStatus = "completed"
	FlushSkippedBusy  FlushStatus = "skipped_busy"
	FlushSkippedEmpty FlushStatus = "skipped_empty"
	FlushFailed       FlushStatus = "failed"
)

// FlushResult is the folded outcome of one flush attempt. Failures inside
// the flush are logged at their origin; callers only branch on Status.
type FlushResult struct {
	Status    FlushStatus
	Key       buffer.Key
	Fragments int
	Created   bool
	Artifact  ArtifactRef
}

// Pipeline orchestrates buffer, guard, registry and the summarizer/document
// collaborators for one process.
type Pipeline struct {
	logger     *slog.Logger
	store      *buffer.Store
	guard      *Guard
	registry   *ArtifactRegistry
	summarizer Summarizer
	docs       DocumentStore
	notifier   Notifier
	journal    FlushJournal

	titlePrefix string
	labelGuide  []string
	permalink   func(channel, ts string) string
	now         func() time.Time
}

// PipelineOptions carries the collaborators and settings for NewPipeline.
// Notifier, Journal and Permalink are optional.
type PipelineOptions struct {
	Logger      *slog.Logger
	Store       *buffer.Store
	Summarizer  Summarizer
	Documents   DocumentStore
	Notifier    Notifier
	Journal     FlushJournal
	TitlePrefix string
	LabelGuide  []string
	Permalink   func(channel, ts string) string
	Now         func() time.Time
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		logger:      opts.Logger,
		store:       opts.Store,
		guard:       NewGuard(),
		registry:    NewArtifactRegistry(),
		summarizer:  opts.Summarizer,
		docs:        opts.Documents,
		notifier:    opts.Notifier,
		journal:     opts.Journal,
		titlePrefix: opts.TitlePrefix,
		labelGuide:  opts.LabelGuide,
		permalink:   opts.Permalink,
		now:         opts.Now,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.store == nil {
		p.store = buffer.NewStore()
	}
	if p.titlePrefix == "" {
		p.titlePrefix = "Slackまとめ"
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.permalink == nil {
		p.permalink = func(channel, ts string) string { return channel + "/" + ts }
	}
	return p
}

// Store exposes the underlying buffer for the status endpoint.
func (p *Pipeline) Store() *buffer.Store { return p.store }

// Artifacts exposes the registry snapshot for the status endpoint.
func (p *Pipeline) Artifacts() []ArtifactStatus { return p.registry.Snapshot() }

// Buffer records one labeled fragment under its conversation key.
func (p *Pipeline) Buffer(key buffer.Key, fragment buffer.Fragment) {
	p.store.Add(key, fragment)
	p.logger.Info("buffered fragment",
		"key", key.String(), "label", fragment.Label, "ts", fragment.Timestamp)
}

// FlushThread flushes a single conversation key.
func (p *Pipeline) FlushThread(ctx context.Context, key buffer.Key) FlushResult {
	return p.flush(ctx, key,
		func() []buffer.Fragment { return p.store.List(key) },
		func() { p.store.Clear(key) })
}

// FlushChannel flushes everything buffered in a channel under the
// channel-wide key. The artifact association and the in-flight mark use the
// wide key, so channel flushes never collide with thread flushes over the
// registry.
func (p *Pipeline) FlushChannel(ctx context.Context, channel string) FlushResult {
	key := buffer.ChannelWideKey(channel)
	return p.flush(ctx, key,
		func() []buffer.Fragment { return p.store.ListChannel(channel) },
		func() { p.store.ClearChannel(channel) })
}

func (p *Pipeline) flush(ctx context.Context, key buffer.Key, list func() []buffer.Fragment, clear func()) FlushResult {
	if !p.guard.TryAcquire(key) {
		p.logger.Info("flush already in progress, dropping trigger", "key", key.String())
		return FlushResult{Status: FlushSkippedBusy, Key: key}
	}
	defer p.guard.Release(key)

	fragments := list()
	if len(fragments) == 0 {
		p.logger.Info("trigger fired on empty buffer", "key", key.String())
		return FlushResult{Status: FlushSkippedEmpty, Key: key}
	}

	flushID := uuid.NewString()
	p.logger.Info("flush started", "flush_id", flushID, "key", key.String(), "fragments", len(fragments))

	sortChronological(fragments)

	summary, err := p.summarizer.Summarize(ctx, fragments, p.labelGuide)
	if err != nil {
		p.logger.Error("summarizer failed", "flush_id", flushID, "key", key.String(), "error", err)
		p.recordFlush(flushID, key, len(fragments), FlushFailed, "")
		return FlushResult{Status: FlushFailed, Key: key, Fragments: len(fragments)}
	}

	// Cleared before the document write completes: a crash here loses the
	// buffered content, trading durability for idempotent re-triggering.
	clear()

	body := summary + "\n\n" + p.renderAppendix(key.Channel, fragments)

	ref, known := p.registry.Lookup(key)
	created := false
	if known {
		err = p.docs.AppendToDocument(ctx, ref.ExternalID, body)
	} else {
		title := p.titlePrefix + " " + p.now().Format("2006/01/02")
		ref, err = p.docs.CreateDocument(ctx, title, body)
		if err == nil {
			p.registry.Record(key, ref)
			created = true
		}
	}
	if err != nil {
		p.logger.Error("document write failed", "flush_id", flushID, "key", key.String(), "error", err)
		p.recordFlush(flushID, key, len(fragments), FlushFailed, "")
		return FlushResult{Status: FlushFailed, Key: key, Fragments: len(fragments)}
	}

	p.logger.Info("flush completed",
		"flush_id", flushID, "key", key.String(), "created", created, "url", ref.URL)
	p.recordFlush(flushID, key, len(fragments), FlushCompleted, ref.URL)

	// Notification failure never rolls back the written artifact.
	if p.notifier != nil {
		notice := "まとめをNotionに保存しました :white_check_mark:\n" + ref.URL
		if err := p.notifier.PostMessage(ctx, key.Channel, notice); err != nil {
			p.logger.Warn("completion notice failed", "flush_id", flushID, "key", key.String(), "error", err)
		}
	}

	return FlushResult{Status: FlushCompleted, Key: key, Fragments: len(fragments), Created: created, Artifact: ref}
}

func (p *Pipeline) recordFlush(flushID string, key buffer.Key, fragments int, status FlushStatus, url string) {
	if p.journal == nil {
		return
	}
	if err := p.journal.RecordFlush(flushID, key.String(), fragments, string(status), url); err != nil {
		p.logger.Warn("journal write failed", "flush_id", flushID, "error", err)
	}
}

// renderAppendix lists the source messages with permalinks so the document
// links back to the original conversation.
func (p *Pipeline) renderAppendix(channel string, fragments []buffer.Fragment) string {
	var b strings.Builder
	b.WriteString("## 元メッセージ\n")
	for _, f := range fragments {
		b.WriteString("- [" + f.Label + "] ")
		if p.permalink != nil {
			b.WriteString(p.permalink(channel, f.Timestamp))
		} else {
			b.WriteString(f.Timestamp)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// sortChronological orders fragments by timestamp ascending. The sort is
// stable so same-timestamp fragments keep insertion order.
func sortChronological(fragments []buffer.Fragment) {
	sort.SliceStable(fragments, func(i, j int) bool {
		return tsValue(fragments[i].Timestamp) < tsValue(fragments[j].Timestamp)
	})
}

func tsValue(ts string) float64 {
	v, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0
	}
	return v
}
