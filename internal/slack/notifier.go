// Package slack posts finished call transcripts to a Slack channel.
package slack

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/sourcegraph/conc/pool"

	"github.com/dilumka1020/pravy-voice-bot-v2/internal/storage"
)

const (
	defaultWorkers = 4
	postTimeout    = 10 * time.Second
)

// CallSummary describes a call that has ended.
type CallSummary struct {
	CallSID    string
	From       string
	Status     string
	EndedAt    time.Time
	Transcript []storage.Turn
}

// Notifier posts call transcripts to a channel in the background.
type Notifier struct {
	client  *slack.Client
	channel string
	logger  *slog.Logger

	mu     sync.Mutex
	pool   *pool.Pool
	closed bool
}

// NewNotifier creates a Slack transcript notifier. Extra client options are
// passed through to slack.New.
func NewNotifier(botToken, channel string, logger *slog.Logger, opts ...slack.Option) *Notifier {
	return &Notifier{
		client:  slack.New(botToken, opts...),
		channel: channel,
		logger:  logger,
		pool:    pool.New().WithMaxGoroutines(defaultWorkers),
	}
}

// NotifyCallEnded queues the transcript for posting. Calls without any turns
// are skipped.
func (n *Notifier) NotifyCallEnded(summary CallSummary) {
	if len(summary.Transcript) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		n.logger.Warn("notifier closed, dropping transcript", "call_sid", summary.CallSID)
		return
	}

	n.pool.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
		defer cancel()

		if err := n.Post(ctx, summary); err != nil {
			n.logger.Error("failed to post transcript", "call_sid", summary.CallSID, "error", err)
		}
	})
}

// Post sends the transcript synchronously.
func (n *Notifier) Post(ctx context.Context, summary CallSummary) error {
	_, ts, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(FormatTranscriptText(summary), false),
		slack.MsgOptionBlocks(BuildTranscriptBlocks(summary)...),
	)
	if err != nil {
		return err
	}
	n.logger.Debug("transcript posted", "call_sid", summary.CallSID, "ts", ts)
	return nil
}

// Close waits for queued posts to finish. Later notifications are dropped.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	n.pool.Wait()
}

// NopNotifier discards notifications. It is used when Slack is not configured.
type NopNotifier struct{}

// NotifyCallEnded does nothing.
func (NopNotifier) NotifyCallEnded(CallSummary) {}

// Close does nothing.
func (NopNotifier) Close() {}
