// Package backfill scans historical channel messages through the report
// pipeline, so log databases can be seeded from conversations that
// predate the bot.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/tsumugi-bot/tsumugi/internal/report"
	"github.com/tsumugi-bot/tsumugi/internal/slackx"
)

// HistorySource pages channel history.
type HistorySource interface {
	FetchHistory(ctx context.Context, channel, oldest, latest string, max int) ([]slackx.Message, error)
}

// AccessChecker verifies the target database before any scanning starts.
type AccessChecker interface {
	CheckAccess(ctx context.Context, databaseID string) error
}

// Processor runs one message through the report pipeline.
type Processor interface {
	Process(ctx context.Context, channel, userID, ts, text string, dryRun bool) report.Result
}

// Tally is the end-of-run summary.
type Tally struct {
	Scanned         int
	ReportLike      int
	ParsedReports   int
	SkippedExisting int
	Written         int
	Failed          int
}

// Request describes one backfill run. Since is required; Until and Max
// are optional bounds.
type Request struct {
	Channel string
	Since   string // YYYY-MM-DD, inclusive from 00:00:00 UTC
	Until   string // YYYY-MM-DD, inclusive through 23:59:59 UTC
	Max     int
	DryRun  bool
}

// Runner drives a backfill.
type Runner struct {
	logger    *slog.Logger
	source    HistorySource
	checker   AccessChecker
	processor Processor
	routes    report.RoutingTable
	getenv    func(string) string
	pace      time.Duration
}

// Options wires a Runner. Pace defaults to 150ms between processed
// messages.
type Options struct {
	Logger    *slog.Logger
	Source    HistorySource
	Checker   AccessChecker
	Processor Processor
	Routes    report.RoutingTable
	Getenv    func(string) string
	Pace      time.Duration
}

func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pace := opts.Pace
	if pace == 0 {
		pace = 150 * time.Millisecond
	}
	return &Runner{
		logger:    logger,
		source:    opts.Source,
		checker:   opts.Checker,
		processor: opts.Processor,
		routes:    opts.Routes,
		getenv:    opts.Getenv,
		pace:      pace,
	}
}

// Run scans the requested window oldest-first and feeds every plain user
// message to the report pipeline.
func (r *Runner) Run(ctx context.Context, req Request) (Tally, error) {
	oldest, latest, err := windowBounds(req.Since, req.Until)
	if err != nil {
		return Tally{}, err
	}

	target, err := report.ResolveLogTarget(report.ToolKey, req.Channel, r.routes, r.getenv)
	if err != nil {
		return Tally{}, fmt.Errorf("resolve log target for %s: %w", req.Channel, err)
	}
	if r.checker != nil {
		if err := r.checker.CheckAccess(ctx, target); err != nil {
			return Tally{}, fmt.Errorf("log database %s unreachable: %w", target, err)
		}
	}

	r.logger.Info("backfill starting",
		"channel", req.Channel, "since", req.Since, "until", req.Until,
		"target", target, "dry_run", req.DryRun)

	messages, err := r.source.FetchHistory(ctx, req.Channel, oldest, latest, req.Max)
	if err != nil {
		return Tally{}, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return tsValue(messages[i].Timestamp) < tsValue(messages[j].Timestamp)
	})
	r.logger.Info("backfill fetched", "messages", len(messages))

	var tally Tally
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return tally, err
		}
		tally.Scanned++
		if msg.SubType != "" || msg.BotID != "" {
			continue
		}

		result := r.processor.Process(ctx, req.Channel, msg.User, msg.Timestamp, msg.Text, req.DryRun)
		switch result.Outcome {
		case report.OutcomeRejected, report.OutcomeUnrouted:
			continue
		case report.OutcomeDuplicate:
			tally.ReportLike++
			tally.SkippedExisting++
		case report.OutcomeNoItems:
			tally.ReportLike++
		case report.OutcomeLogged:
			tally.ReportLike++
			tally.ParsedReports++
			tally.Written += result.Written
			tally.Failed += result.Failed
		case report.OutcomeFailed:
			tally.ReportLike++
			tally.Failed++
		}

		if r.pace > 0 {
			select {
			case <-ctx.Done():
				return tally, ctx.Err()
			case <-time.After(r.pace):
			}
		}
	}

	r.logger.Info("backfill finished",
		"scanned", tally.Scanned, "report_like", tally.ReportLike,
		"parsed", tally.ParsedReports, "skipped_existing", tally.SkippedExisting,
		"written", tally.Written, "failed", tally.Failed)
	return tally, nil
}

// windowBounds converts the date arguments to Slack timestamp strings.
func windowBounds(since, until string) (string, string, error) {
	if since == "" {
		return "", "", fmt.Errorf("since date is required")
	}
	sinceDay, err := time.Parse("2006-01-02", since)
	if err != nil {
		return "", "", fmt.Errorf("invalid since date %q: %w", since, err)
	}
	oldest := strconv.FormatInt(sinceDay.UTC().Unix(), 10)

	latest := ""
	if until != "" {
		untilDay, err := time.Parse("2006-01-02", until)
		if err != nil {
			return "", "", fmt.Errorf("invalid until date %q: %w", until, err)
		}
		end := untilDay.UTC().Add(24*time.Hour - time.Second)
		latest = strconv.FormatInt(end.Unix(), 10)
	}
	return oldest, latest, nil
}

func tsValue(ts string) float64 {
	v, _ := strconv.ParseFloat(ts, 64)
	return v
}
