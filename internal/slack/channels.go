package slack

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slack-go/slack"

	"github.com/leaftrace/anomalyd/internal/logging"
)

// conversationLister is the subset of the Slack API used to resolve names
type conversationLister interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

// ChannelResolver resolves channel names to IDs
type ChannelResolver struct {
	client conversationLister
	cache  map[string]string // name -> id
	mu     sync.RWMutex
}

// NewChannelResolver creates a new channel resolver
func NewChannelResolver(client conversationLister) *ChannelResolver {
	return &ChannelResolver{
		client: client,
		cache:  make(map[string]string),
	}
}

// ResolveChannel resolves a channel name or ID to a channel ID.
// Accepts a channel ID (C01234567890) or a name (#supply-alerts or supply-alerts).
func (r *ChannelResolver) ResolveChannel(ctx context.Context, nameOrID string) (string, error) {
	if nameOrID == "" {
		return "", fmt.Errorf("channel name/ID is empty")
	}

	if isChannelID(nameOrID) {
		return nameOrID, nil
	}

	channelName := strings.TrimPrefix(nameOrID, "#")

	r.mu.RLock()
	if id, ok := r.cache[channelName]; ok {
		r.mu.RUnlock()
		return id, nil
	}
	r.mu.RUnlock()

	if r.client == nil {
		return "", fmt.Errorf("channel '%s' not found: no slack client", channelName)
	}

	id, err := r.lookupChannel(ctx, channelName)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[channelName] = id
	r.mu.Unlock()

	logging.Infof("Resolved slack channel '%s' to '%s'", channelName, id)
	return id, nil
}

// lookupChannel searches public then private channels, following pagination
func (r *ChannelResolver) lookupChannel(ctx context.Context, name string) (string, error) {
	for _, kind := range []string{"public_channel", "private_channel"} {
		cursor := ""
		for {
			channels, next, err := r.client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
				ExcludeArchived: true,
				Limit:           1000,
				Types:           []string{kind},
				Cursor:          cursor,
			})
			if err != nil {
				if kind == "public_channel" {
					return "", fmt.Errorf("failed to list public channels: %w", err)
				}
				logging.Warnf("Failed to list private slack channels: %v", err)
				break
			}

			for _, channel := range channels {
				if channel.Name == name {
					return channel.ID, nil
				}
			}

			if next == "" {
				break
			}
			cursor = next
		}
	}

	return "", fmt.Errorf("channel '%s' not found", name)
}

// ClearCache clears the channel name resolution cache
func (r *ChannelResolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]string)
}

// isChannelID checks if a string looks like a Slack channel ID.
// Channel IDs start with C and are followed by uppercase alphanumerics.
func isChannelID(s string) bool {
	if len(s) < 9 || len(s) > 15 {
		return false
	}
	if !strings.HasPrefix(s, "C") {
		return false
	}
	for _, c := range s[1:] {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
