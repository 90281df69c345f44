package signalengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/ingest"
	"github.com/topiclab/topicbot/internal/notify"
)

// MarketSource supplies the current market universe. The monitor never retries
// transient fetch errors itself; it just skips the cycle and polls again.
type MarketSource interface {
	FetchMarkets(ctx context.Context) ([]domain.Market, error)
}

// Monitor drives the live pipeline: poll the market source, feed new
// resolutions through the tracker, and let the engine emit signals.
type Monitor struct {
	source   MarketSource
	tracker  *ingest.Tracker
	engine   *Engine
	notifier *notify.Notifier // may be nil
	interval time.Duration
	logger   *slog.Logger
}

// NewMonitor creates a Monitor polling at the given interval.
func NewMonitor(source MarketSource, tracker *ingest.Tracker, engine *Engine, notifier *notify.Notifier, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		source:   source,
		tracker:  tracker,
		engine:   engine,
		notifier: notifier,
		interval: interval,
		logger:   logger.With(slog.String("component", "signal_monitor")),
	}
}

// Check runs a single poll-and-signal cycle and returns the emitted signals.
func (m *Monitor) Check(ctx context.Context) ([]domain.Signal, error) {
	markets, err := m.source.FetchMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("signalengine: fetch markets: %w", err)
	}

	fresh, err := m.tracker.Poll(ctx, markets)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	signals, err := m.engine.Emit(ctx, fresh, m.tracker.State())
	if err != nil {
		return signals, err
	}

	for _, sig := range signals {
		m.notify(ctx, sig)
	}
	return signals, nil
}

// Run polls until the context is cancelled. Cycle errors are logged and the
// loop continues; only context cancellation stops it.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "monitor started", slog.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Check(ctx); err != nil {
				m.logger.WarnContext(ctx, "monitor cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (m *Monitor) notify(ctx context.Context, sig domain.Signal) {
	if m.notifier == nil {
		return
	}
	title := "Signal: " + sig.DedupKey()
	msg := fmt.Sprintf("leader %s resolved %s; follower %s may reprice (similarity %.2f)",
		sig.LeaderID, sig.LeaderResolution, sig.FollowerID, sig.EdgeSimilarity)
	if err := m.notifier.Notify(ctx, "signal_emitted", title, msg); err != nil {
		m.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
	}
}
