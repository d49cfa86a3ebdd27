package intake

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/pkg/slack"
)

// slackExport is the object form of a channel history export.
type slackExport struct {
	Channel  string               `json:"channel"`
	Messages []slack.MessageEvent `json:"messages"`
}

// ReadMessages loads lead-alert messages from a file. The file is either a
// Slack export (a JSON array of messages, or an object with a messages
// array) or the plain text of a single alert.
func ReadMessages(path string) ([]Message, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: read %s", path)
	}
	msgs, err := ParseMessages(b)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: parse %s", path)
	}
	return msgs, nil
}

// ParseMessages decodes the contents of a message file. Edits, thread
// replies and blank messages in an export are skipped.
func ParseMessages(b []byte) ([]Message, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil, eris.New("intake: empty message file")
	}

	var export slackExport
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &export.Messages); err != nil {
			return nil, eris.Wrap(err, "intake: decode message array")
		}
	case '{':
		if err := json.Unmarshal(trimmed, &export); err != nil {
			return nil, eris.Wrap(err, "intake: decode export")
		}
	default:
		return []Message{{Text: string(trimmed)}}, nil
	}

	out := make([]Message, 0, len(export.Messages))
	for i := range export.Messages {
		ev := &export.Messages[i]
		if strings.TrimSpace(ev.Text) == "" || ignoredSubtypes[ev.Subtype] {
			continue
		}
		if ev.ThreadTS != "" && ev.ThreadTS != ev.TS {
			continue
		}
		channel := ev.Channel
		if channel == "" {
			channel = export.Channel
		}
		out = append(out, Message{Text: ev.Text, Timestamp: ev.Timestamp(), Channel: channel})
	}
	return out, nil
}
