package intake

import "github.com/sells-group/lead-intake/pkg/slack"

// ignoredSubtypes are message events that never carry a new lead.
var ignoredSubtypes = map[string]bool{
	"message_changed":  true,
	"message_deleted":  true,
	"thread_broadcast": true,
	"channel_join":     true,
}

// IsLeadAlert reports whether ev was posted in the lead-alert channel by
// the CRM bot. Messages without a bot id are accepted from that channel.
// Thread replies and edits are not alerts.
func IsLeadAlert(ev *slack.MessageEvent, channelID, botID string) bool {
	if ev == nil || ev.Type != "message" {
		return false
	}
	if ev.Channel != channelID {
		return false
	}
	if ignoredSubtypes[ev.Subtype] {
		return false
	}
	if ev.ThreadTS != "" && ev.ThreadTS != ev.TS {
		return false
	}
	return ev.BotID == "" || ev.BotID == botID
}
