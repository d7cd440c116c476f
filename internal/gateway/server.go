// Package gateway receives Slack events over HTTP or Socket Mode and
// drives the digest and report pipelines.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tsumugi-bot/tsumugi/internal/buffer"
	"github.com/tsumugi-bot/tsumugi/internal/config"
	"github.com/tsumugi-bot/tsumugi/internal/digest"
	"github.com/tsumugi-bot/tsumugi/internal/report"
	"github.com/tsumugi-bot/tsumugi/internal/slackx"
)

// Digester is the slice of the digest pipeline the gateway drives.
type Digester interface {
	Buffer(key buffer.Key, fragment buffer.Fragment)
	FlushThread(ctx context.Context, key buffer.Key) digest.FlushResult
	FlushChannel(ctx context.Context, channel string) digest.FlushResult
	Store() *buffer.Store
	Artifacts() []digest.ArtifactStatus
}

// ReportSink consumes free-text messages for report detection.
type ReportSink interface {
	HandleMessage(ctx context.Context, channel, userID, ts, text string) report.Result
}

// MessageSource resolves messages and threads from Slack.
type MessageSource interface {
	FetchMessage(ctx context.Context, channel, ts string) (slackx.Message, error)
	FetchThreadReplies(ctx context.Context, channel, threadTS string) ([]slackx.Message, error)
}

// Server is the event intake. It owns request verification, event dedup
// and the dispatch into the pipelines.
type Server struct {
	logger        *slog.Logger
	rules         *config.Rules
	signingSecret string
	digester      Digester
	reports       ReportSink
	source        MessageSource

	dedupMu   sync.Mutex
	dedupSeen map[string]time.Time
	dedupTTL  time.Duration
}

// Options wires a Server.
type Options struct {
	Logger        *slog.Logger
	Rules         *config.Rules
	SigningSecret string
	Digester      Digester
	Reports       ReportSink
	Source        MessageSource
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:        logger,
		rules:         opts.Rules,
		signingSecret: opts.SigningSecret,
		digester:      opts.Digester,
		reports:       opts.Reports,
		source:        opts.Source,
		dedupSeen:     map[string]time.Time{},
		dedupTTL:      10 * time.Minute,
	}
}

// Handler returns the HTTP mux for the gateway endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/slack/events", s.handleEvents)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// ListenAndServe runs the HTTP gateway until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("gateway listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func verifySlackSignature(body []byte, header http.Header, secret string, now time.Time) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	ts := strings.TrimSpace(header.Get("X-Slack-Request-Timestamp"))
	sig := strings.TrimSpace(header.Get("X-Slack-Signature"))
	if ts == "" || sig == "" {
		return errors.New("missing slack signature headers")
	}
	tsNum, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return err
	}
	if delta := now.Sub(time.Unix(tsNum, 0)); delta > 5*time.Minute || delta < -5*time.Minute {
		return errors.New("slack signature timestamp out of range")
	}
	base := "v0:" + ts + ":" + string(body)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(base))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return errors.New("slack signature mismatch")
	}
	return nil
}

// seenEvent marks an event id and reports whether it was already seen
// within the TTL. Slack retries deliveries; retried events must not
// re-trigger flushes or report writes.
func (s *Server) seenEvent(id string, now time.Time) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	s.dedupMu.Lock()
	defer s.dedupMu.Unlock()
	for key, expiry := range s.dedupSeen {
		if now.After(expiry) {
			delete(s.dedupSeen, key)
		}
	}
	if _, ok := s.dedupSeen[id]; ok {
		return true
	}
	s.dedupSeen[id] = now.Add(s.dedupTTL)
	return false
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"ok":true}`)
}
