// ABOUTME: Fixed-interval history poller keeping the store's conversation view current.
// ABOUTME: Fetch errors are counted and skipped; the interval never backs off.

package scout

import (
	"context"
	"log"
	"time"

	"github.com/CIRISAI/scoutgui/pipeline"
)

// PollHistory fetches the channel history immediately and then on a fixed
// interval until ctx ends. A failed fetch is logged and skipped; the next
// tick retries at the same interval. No ordering is assumed between a poll
// result and concurrently arriving stream events — the store re-projects on
// whichever lands first.
func (c *Client) PollHistory(ctx context.Context, store *pipeline.Store, channelID string, interval time.Duration, limit int) {
	fetch := func() {
		messages, err := c.History(ctx, channelID, limit)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			store.NotePollError()
			log.Printf("scout poll: history fetch failed: %v", err)
			return
		}
		store.SetMessages(messages)
	}

	fetch()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fetch()
		}
	}
}
