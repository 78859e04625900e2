package slack

import (
	"context"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/events"
	"github.com/leaftrace/anomalyd/internal/logging"
)

const postTimeout = 10 * time.Second

// Notifier posts CRITICAL detections and escalations to a Slack channel.
// Posting happens in the background; operations never wait on Slack.
type Notifier struct {
	client   *slack.Client
	resolver *ChannelResolver
	channel  string
	enabled  func() bool

	wg sync.WaitGroup
}

// NewNotifier creates a notifier for channel (name or ID). enabled is
// consulted per event so the setting can be toggled at runtime; nil means
// always enabled.
func NewNotifier(client *slack.Client, channel string, enabled func() bool) *Notifier {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	var lister conversationLister
	if client != nil {
		lister = client
	}
	return &Notifier{
		client:   client,
		resolver: NewChannelResolver(lister),
		channel:  channel,
		enabled:  enabled,
	}
}

// New builds a Slack API client
func New(botToken string, options ...slack.Option) *slack.Client {
	return slack.New(botToken, options...)
}

// ShouldNotify reports whether an event warrants a chat notification
func ShouldNotify(evt events.Event) bool {
	switch evt.Type {
	case events.TypeAnomalyDetected:
		return evt.Severity == database.SeverityCritical
	case events.TypeStatusChanged:
		return evt.Status == database.AnomalyStatusEscalated
	}
	return false
}

// Publish implements events.Publisher
func (n *Notifier) Publish(_ context.Context, evt events.Event) {
	if n.client == nil || !ShouldNotify(evt) || !n.enabled() {
		return
	}

	text := FormatEvent(evt)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
		defer cancel()

		channelID, err := n.resolver.ResolveChannel(ctx, n.channel)
		if err != nil {
			logging.Warnf("Slack notification for anomaly %s skipped: %v", evt.AnomalyID, err)
			return
		}

		_, _, err = n.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
		if err != nil {
			logging.Warnf("Failed to post slack notification for anomaly %s: %v", evt.AnomalyID, err)
			return
		}
		logging.Debugf("Posted slack notification for anomaly %s", evt.AnomalyID)
	}()
}

// Wait blocks until in-flight posts finish
func (n *Notifier) Wait() {
	n.wg.Wait()
}
