package report

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// LogStore is the destination side of the report pipeline.
type LogStore interface {
	// HasEntryBySourceURL reports whether an entry for the source message
	// already exists in the target database.
	HasEntryBySourceURL(ctx context.Context, sourceURL, target string) (bool, error)
	// CreateLogEntry appends one item to the target database.
	CreateLogEntry(ctx context.Context, item Item, sourceURL, date, target string) error
}

// NameResolver resolves a user id to a display name. Best effort; a failed
// lookup falls back to the raw id.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) string
}

// Marker annotates a processed source message, e.g. with a reaction.
type Marker interface {
	AddReaction(ctx context.Context, channel, timestamp, name string) error
}

// Outcome classifies how one message moved through the pipeline.
type Outcome string

const (
	OutcomeRejected  Outcome = "rejected"  // classifier said no
	OutcomeUnrouted  Outcome = "unrouted"  // no log target configured
	OutcomeDuplicate Outcome = "duplicate" // permalink already logged
	OutcomeNoItems   Outcome = "no_items"  // extractor found nothing
	OutcomeLogged    Outcome = "logged"    // at least one item written
	OutcomeFailed    Outcome = "failed"    // extraction or every write failed
)

// Result is the folded outcome of processing one message.
type Result struct {
	Outcome Outcome
	Written int
	Failed  int
}

// ToolKey identifies this detector in the routing table.
const ToolKey = "report_detect"

// Pipeline applies classify → route → dedup → extract → write to a single
// message. Shared by the live gateway handler and the backfill runner.
type Pipeline struct {
	logger    *slog.Logger
	extractor *Extractor
	store     LogStore
	names     NameResolver
	marker    Marker

	routes       RoutingTable
	getenv       func(string) string
	permalink    func(channel, ts string) string
	markReaction string
	writeDelay   time.Duration
}

// PipelineOptions carries collaborators and settings for NewPipeline.
// Names, Marker and MarkReaction are optional.
type PipelineOptions struct {
	Logger       *slog.Logger
	Extractor    *Extractor
	Store        LogStore
	Names        NameResolver
	Marker       Marker
	Routes       RoutingTable
	Getenv       func(string) string
	Permalink    func(channel, ts string) string
	MarkReaction string
	// WriteDelay is the pacing inserted between item writes. The Notion API
	// throttles aggressively; bursts fail silently partway through.
	WriteDelay time.Duration
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		logger:       opts.Logger,
		extractor:    opts.Extractor,
		store:        opts.Store,
		names:        opts.Names,
		marker:       opts.Marker,
		routes:       opts.Routes,
		getenv:       opts.Getenv,
		permalink:    opts.Permalink,
		markReaction: opts.MarkReaction,
		writeDelay:   opts.WriteDelay,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.permalink == nil {
		p.permalink = func(channel, ts string) string { return channel + "/" + ts }
	}
	return p
}

// HandleMessage runs the live path for one channel message.
func (p *Pipeline) HandleMessage(ctx context.Context, channel, userID, ts, text string) Result {
	return p.Process(ctx, channel, userID, ts, text, false)
}

// Process runs the full sequence; with dryRun set, everything except the
// final writes (and the mark reaction) happens.
func (p *Pipeline) Process(ctx context.Context, channel, userID, ts, text string, dryRun bool) Result {
	if !LooksLikeReport(text) {
		return Result{Outcome: OutcomeRejected}
	}

	target, err := ResolveLogTarget(ToolKey, channel, p.routes, p.getenv)
	if err != nil {
		p.logger.Error("report log routing unconfigured", "channel", channel)
		return Result{Outcome: OutcomeUnrouted}
	}

	sourceURL := p.permalink(channel, ts)

	exists, err := p.store.HasEntryBySourceURL(ctx, sourceURL, target)
	if err != nil {
		p.logger.Error("dedup lookup failed", "channel", channel, "ts", ts, "error", err)
		return Result{Outcome: OutcomeFailed}
	}
	if exists {
		return Result{Outcome: OutcomeDuplicate}
	}

	reporter := userID
	if p.names != nil && userID != "" {
		reporter = p.names.DisplayName(ctx, userID)
	}

	items, err := p.extractor.Extract(ctx, text, reporter)
	if err != nil {
		// Extraction failure degrades to "no report detected".
		p.logger.Error("extraction failed", "channel", channel, "ts", ts, "error", err)
		return Result{Outcome: OutcomeFailed}
	}
	if len(items) == 0 {
		return Result{Outcome: OutcomeNoItems}
	}

	date := messageDate(ts)
	written, failed := 0, 0
	for i, item := range items {
		if dryRun {
			written++
			continue
		}
		if i > 0 && p.writeDelay > 0 {
			time.Sleep(p.writeDelay)
		}
		if err := p.store.CreateLogEntry(ctx, item, sourceURL, date, target); err != nil {
			p.logger.Error("log entry write failed",
				"channel", channel, "ts", ts, "customer", item.Customer, "error", err)
			failed++
			continue
		}
		written++
	}

	if written == 0 {
		return Result{Outcome: OutcomeFailed, Failed: failed}
	}

	if !dryRun && p.marker != nil && p.markReaction != "" {
		if err := p.marker.AddReaction(ctx, channel, ts, p.markReaction); err != nil {
			p.logger.Warn("mark reaction failed", "channel", channel, "ts", ts, "error", err)
		}
	}

	p.logger.Info("report logged",
		"channel", channel, "ts", ts, "items", written, "failed", failed, "target", target)
	return Result{Outcome: OutcomeLogged, Written: written, Failed: failed}
}

// messageDate renders the UTC calendar date of a Slack timestamp.
func messageDate(ts string) string {
	v, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Now().UTC().Format("2006-01-02")
	}
	return time.Unix(int64(v), 0).UTC().Format("2006-01-02")
}
