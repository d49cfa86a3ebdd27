package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Text joins the text blocks of a response.
func (r *MessageResponse) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" || c.Type == "" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// StripCodeFence removes a surrounding markdown code fence (``` or ```json)
// if present and trims whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop a language tag such as "json" on the opening fence line.
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON strips code fences from the response text and unmarshals it
// into out.
func DecodeJSON(resp *MessageResponse, out any) error {
	text := StripCodeFence(resp.Text())
	if text == "" {
		return eris.New("anthropic: empty response")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return eris.Wrap(err, "anthropic: decode json response")
	}
	return nil
}
