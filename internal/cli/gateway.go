package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsumugi-bot/tsumugi/internal/backfill"
	"github.com/tsumugi-bot/tsumugi/internal/config"
	"github.com/tsumugi-bot/tsumugi/internal/digest"
	"github.com/tsumugi-bot/tsumugi/internal/gateway"
	"github.com/tsumugi-bot/tsumugi/internal/journal"
	"github.com/tsumugi-bot/tsumugi/internal/notion"
	"github.com/tsumugi-bot/tsumugi/internal/provider"
	"github.com/tsumugi-bot/tsumugi/internal/report"
	"github.com/tsumugi-bot/tsumugi/internal/slackx"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the Slack event gateway",
	RunE:  runGateway,
}

// channelNotifier adapts the Slack client to the digest completion
// notice, which always posts to the channel top level.
type channelNotifier struct {
	slack *slackx.Client
}

func (n channelNotifier) PostMessage(ctx context.Context, channel, text string) error {
	return n.slack.PostMessage(ctx, channel, "", text)
}

// buildRuntime assembles the shared pieces of the gateway and backfill
// commands from configuration.
type runtime struct {
	logger  *slog.Logger
	cfg     *config.Config
	rules   *config.Rules
	slack   *slackx.Client
	notion  *notion.Client
	digest  *digest.Pipeline
	reports *report.Pipeline
	journal *journal.Service
}

func buildRuntime() (*runtime, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rules, err := config.LoadRules(cfg.Paths.Rules)
	if err != nil {
		return nil, err
	}

	slackClient := slackx.New(cfg.Slack.BotToken, cfg.Slack.APIBase, logger)
	notionClient := notion.NewClient(cfg.Notion.Token, cfg.Notion.APIBase, cfg.Notion.DatabaseID)
	llm := provider.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.APIBase, cfg.OpenAI.Model)

	var flushJournal digest.FlushJournal
	var journalSvc *journal.Service
	if cfg.Paths.Journal != "" {
		journalSvc, err = journal.NewService(cfg.Paths.Journal)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		flushJournal = journalSvc
	}

	digestPipeline := digest.NewPipeline(digest.PipelineOptions{
		Logger:      logger,
		Summarizer:  digest.NewLLMSummarizer(llm, cfg.OpenAI.Model),
		Documents:   notionClient,
		Notifier:    channelNotifier{slack: slackClient},
		Journal:     flushJournal,
		TitlePrefix: rules.NotionTitlePrefix,
		LabelGuide:  rules.LabelGuide(),
		Permalink:   slackx.Permalink,
	})

	reportPipeline := report.NewPipeline(report.PipelineOptions{
		Logger:       logger,
		Extractor:    report.NewExtractor(llm, cfg.OpenAI.Model),
		Store:        notionClient,
		Names:        slackClient,
		Marker:       slackClient,
		Routes:       rules.ReportLogDatabases,
		Getenv:       os.Getenv,
		Permalink:    slackx.Permalink,
		MarkReaction: rules.MarkReaction,
		WriteDelay:   150 * time.Millisecond,
	})

	return &runtime{
		logger:  logger,
		cfg:     cfg,
		rules:   rules,
		slack:   slackClient,
		notion:  notionClient,
		digest:  digestPipeline,
		reports: reportPipeline,
		journal: journalSvc,
	}, nil
}

func (rt *runtime) Close() {
	if rt.journal != nil {
		rt.journal.Close()
	}
}

func (rt *runtime) backfillRunner() *backfill.Runner {
	return backfill.NewRunner(backfill.Options{
		Logger:    rt.logger,
		Source:    rt.slack,
		Checker:   rt.notion,
		Processor: rt.reports,
		Routes:    rt.rules.ReportLogDatabases,
		Getenv:    os.Getenv,
	})
}

func runGateway(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	server := gateway.NewServer(gateway.Options{
		Logger:        rt.logger,
		Rules:         rt.rules,
		SigningSecret: rt.cfg.Slack.SigningSecret,
		Digester:      rt.digest,
		Reports:       rt.reports,
		Source:        rt.slack,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		rt.logger.Info("shutting down")
		cancel()
	}()

	if rt.cfg.Gateway.SocketMode {
		if rt.cfg.Slack.AppToken == "" {
			return fmt.Errorf("socket mode requires SLACK_APP_TOKEN")
		}
		rt.logger.Info("gateway starting in socket mode")
		return server.RunSocketMode(ctx, rt.cfg.Slack.BotToken, rt.cfg.Slack.AppToken)
	}

	addr := fmt.Sprintf("%s:%d", rt.cfg.Gateway.Host, rt.cfg.Gateway.Port)
	return server.ListenAndServe(ctx, addr)
}
