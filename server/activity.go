package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// activityEvent is what a handler emits after a successful mutation. The
// worker turns it into an audit row, a webhook one-liner and an SSE event.
type activityEvent struct {
	Action     string
	UserID     int64
	Username   string
	BoardID    int64
	BoardTitle string
	CardID     *int64
	CardTitle  string
	Details    map[string]any
}

// Notifier is the fire-and-forget side channel: handlers never wait on it
// and never see its failures.
type Notifier struct {
	store      *Store
	log        *slog.Logger
	bus        *EventBus
	metrics    *metricsCollector
	webhookURL string
	ch         chan activityEvent
	done       chan struct{}
}

func NewNotifier(store *Store, log *slog.Logger, bus *EventBus, m *metricsCollector, webhookURL string) *Notifier {
	return &Notifier{
		store:      store,
		log:        log,
		bus:        bus,
		metrics:    m,
		webhookURL: webhookURL,
		ch:         make(chan activityEvent, 256),
		done:       make(chan struct{}),
	}
}

func (n *Notifier) Start() {
	go func() {
		defer close(n.done)
		for ev := range n.ch {
			n.process(ev)
		}
	}()
}

// Close drains pending events and stops the worker.
func (n *Notifier) Close() {
	close(n.ch)
	select {
	case <-n.done:
	case <-time.After(5 * time.Second):
		n.log.Warn("notifier drain timed out")
	}
}

// Record enqueues an event without blocking; a full queue drops the event.
func (n *Notifier) Record(ev activityEvent) {
	select {
	case n.ch <- ev:
	default:
		n.metrics.activityDropped.Inc()
		n.log.Warn("activity event dropped", "action", ev.Action, "board_id", ev.BoardID)
	}
}

func (n *Notifier) process(ev activityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := n.store.InsertActivity(ctx, ActivityLog{
		Action:  ev.Action,
		UserID:  ev.UserID,
		BoardID: ev.BoardID,
		CardID:  ev.CardID,
		Details: ev.Details,
	}); err != nil {
		n.log.Error("activity write", "err", err, "action", ev.Action)
	}

	n.bus.Publish(Event{
		Action:  ev.Action,
		UserID:  ev.UserID,
		BoardID: ev.BoardID,
		CardID:  ev.CardID,
		Details: ev.Details,
		At:      time.Now().UTC(),
	})

	if n.webhookURL == "" {
		return
	}
	msg := composeSummary(ev)
	if msg == "" {
		return
	}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, &slack.WebhookMessage{Text: msg}); err != nil {
		n.metrics.webhookFailures.Inc()
		n.log.Error("webhook post", "err", err, "action", ev.Action)
	}
}

// composeSummary renders the one-line chat message for an activity event.
func composeSummary(ev activityEvent) string {
	switch {
	case strings.Contains(ev.Action, "card"):
		return fmt.Sprintf("📋 %s %s %q in board %q", ev.Username, ev.Action, ev.CardTitle, ev.BoardTitle)
	case strings.Contains(ev.Action, "list"):
		return fmt.Sprintf("📋 %s %s in board %q", ev.Username, ev.Action, ev.BoardTitle)
	case strings.Contains(ev.Action, "board"):
		return fmt.Sprintf("📋 %s %s %q", ev.Username, ev.Action, ev.BoardTitle)
	}
	return ""
}
