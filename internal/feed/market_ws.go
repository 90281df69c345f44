// Package feed streams live market events over WebSocket so the monitor can
// react between polls instead of waiting for the next tick.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/topiclab/topicbot/internal/domain"
)

const (
	handshakeTimeout = 15 * time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 25 * time.Second
	reconnectDelay   = 2 * time.Second
)

// MarketEvent is a single market update from the stream. Only the fields the
// monitor cares about are decoded; everything else is ignored.
type MarketEvent struct {
	EventType string `json:"event_type"`
	MarketID  string `json:"market"`
	Closed    bool   `json:"closed"`
}

// EventHandler is called for each decoded market event.
type EventHandler func(ctx context.Context, ev MarketEvent)

// MarketWSFeed subscribes to the market channel for the given asset ids and
// invokes the handler on each event. It reconnects on disconnect until the
// context is cancelled.
type MarketWSFeed struct {
	wsURL     string
	assetIDs  []string
	onEvent   EventHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewMarketWSFeed creates a feed for the given WebSocket endpoint.
func NewMarketWSFeed(wsURL string, assetIDs []string, onEvent EventHandler, logger *slog.Logger) *MarketWSFeed {
	return &MarketWSFeed{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		onEvent:  onEvent,
		logger:   logger.With(slog.String("component", "market_ws_feed")),
		done:     make(chan struct{}),
	}
}

// Run connects and processes events until ctx is cancelled or Close is called.
// Disconnects are logged and followed by a reconnect attempt.
func (f *MarketWSFeed) Run(ctx context.Context) error {
	if len(f.assetIDs) == 0 {
		f.logger.Info("no asset ids to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			f.logger.Warn("market ws disconnected, reconnecting", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// Close stops the feed.
func (f *MarketWSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *MarketWSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	sub := map[string]any{
		"type":       "market",
		"assets_ids": f.assetIDs,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("market ws subscribed", slog.Int("assets", len(f.assetIDs)))

	// Close the connection when ctx ends so the blocked ReadMessage returns.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-f.done:
			_ = conn.Close()
		case <-stop:
		}
	}()

	go f.pingLoop(ctx, conn, stop)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w (%w)", err, domain.ErrWSDisconnect)
		}
		f.dispatch(ctx, payload)
	}
}

func (f *MarketWSFeed) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// dispatch decodes one frame, which may be a single event or an array of
// events, and hands each to the handler.
func (f *MarketWSFeed) dispatch(ctx context.Context, payload []byte) {
	if f.onEvent == nil {
		return
	}

	var events []MarketEvent
	if err := json.Unmarshal(payload, &events); err != nil {
		var single MarketEvent
		if err := json.Unmarshal(payload, &single); err != nil {
			f.logger.Debug("unparseable ws frame", slog.Int("bytes", len(payload)))
			return
		}
		events = []MarketEvent{single}
	}

	for _, ev := range events {
		if ev.MarketID == "" {
			continue
		}
		f.onEvent(ctx, ev)
	}
}
