package discord

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// typingNotifier keeps the channel's typing indicator alive for the duration
// of an execution. Discord drops the indicator after roughly ten seconds, so
// long executions refresh it.
type typingNotifier struct {
	dg *discordgo.Session
}

func (t *typingNotifier) StartTyping(channelID string) (stop func()) {
	done := make(chan struct{})
	go func() {
		_ = t.dg.ChannelTyping(channelID)
		ticker := time.NewTicker(8 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = t.dg.ChannelTyping(channelID)
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
