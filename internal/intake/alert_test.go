package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-intake/pkg/slack"
)

func TestIsLeadAlert(t *testing.T) {
	const channel, bot = "C05B5QBJVAM", "B02JNJTTULW"
	base := func() *slack.MessageEvent {
		return &slack.MessageEvent{Type: "message", Channel: channel, BotID: bot, TS: "1.0", Text: "*Company:* Acme"}
	}

	tests := []struct {
		name   string
		mutate func(*slack.MessageEvent)
		want   bool
	}{
		{"bot alert", func(*slack.MessageEvent) {}, true},
		{"no bot id", func(e *slack.MessageEvent) { e.BotID = "" }, true},
		{"bot_message subtype", func(e *slack.MessageEvent) { e.Subtype = "bot_message" }, true},
		{"other channel", func(e *slack.MessageEvent) { e.Channel = "C999" }, false},
		{"other bot", func(e *slack.MessageEvent) { e.BotID = "B999" }, false},
		{"edit", func(e *slack.MessageEvent) { e.Subtype = "message_changed" }, false},
		{"thread reply", func(e *slack.MessageEvent) { e.ThreadTS = "0.5" }, false},
		{"thread parent", func(e *slack.MessageEvent) { e.ThreadTS = "1.0" }, true},
		{"not a message", func(e *slack.MessageEvent) { e.Type = "reaction_added" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := base()
			tt.mutate(ev)
			assert.Equal(t, tt.want, IsLeadAlert(ev, channel, bot))
		})
	}

	assert.False(t, IsLeadAlert(nil, channel, bot))
}
