package slack

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/slack-go/slack/slackevents"
)

// Envelope types sent to the Events API endpoint.
const (
	TypeURLVerification = slackevents.URLVerification
	TypeEventCallback   = slackevents.CallbackEvent
)

// Envelope is the outer Events API payload, flattened to what intake reads.
type Envelope struct {
	Type      string
	Token     string
	Challenge string
	TeamID    string
	EventID   string
	EventTime int64
	Event     *MessageEvent
}

// MessageEvent is the inner event for channel messages.
type MessageEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Channel  string `json:"channel"`
	User     string `json:"user,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	EventTS  string `json:"event_ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Timestamp returns the message timestamp, falling back to event_ts.
func (e *MessageEvent) Timestamp() string {
	if e == nil {
		return ""
	}
	if e.TS != "" {
		return e.TS
	}
	return e.EventTS
}

// ParseEnvelope decodes a raw Events API body. The request signature is
// the only authentication, so the legacy verification token is ignored.
// Inner events other than messages leave Event nil.
func ParseEnvelope(body []byte) (*Envelope, error) {
	// slackevents dereferences the inner event without a nil check.
	var outer struct {
		Type  string          `json:"type"`
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, eris.Wrap(err, "slack: decode envelope")
	}
	if outer.Type == TypeEventCallback && (len(outer.Event) == 0 || string(outer.Event) == "null") {
		return nil, eris.New("slack: event_callback without event")
	}

	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return nil, eris.Wrap(err, "slack: decode envelope")
	}

	env := &Envelope{Type: ev.Type, Token: ev.Token, TeamID: ev.TeamID}
	switch data := ev.Data.(type) {
	case *slackevents.EventsAPIURLVerificationEvent:
		env.Challenge = data.Challenge
	case *slackevents.EventsAPICallbackEvent:
		env.EventID = data.EventID
		env.EventTime = int64(data.EventTime)
	}
	if msg, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent); ok {
		env.Event = &MessageEvent{
			Type:     msg.Type,
			Subtype:  msg.SubType,
			Channel:  msg.Channel,
			User:     msg.User,
			BotID:    msg.BotID,
			Text:     msg.Text,
			TS:       msg.TimeStamp,
			EventTS:  msg.EventTimeStamp,
			ThreadTS: msg.ThreadTimeStamp,
		}
	}
	return env, nil
}
