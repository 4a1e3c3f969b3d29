package core

import (
	"encoding/json"
	"strings"
)

// SSEEvent is one decoded unit from a Server-Sent-Events stream. Data holds
// the parsed JSON value when the payload parses as JSON, the raw joined
// string otherwise, and nil for records that carried no data field.
type SSEEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// ParseSSEEvents decodes a complete SSE text blob into its ordered event
// sequence. Records are separated by blank lines; multiple data: lines
// within one record are joined with newlines per the SSE spec. The parser is
// a pure transform: malformed or truncated trailing content never fails, it
// simply stops at end of input.
func ParseSSEEvents(raw string) []SSEEvent {
	var events []SSEEvent
	for _, block := range strings.Split(raw, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		eventType := ""
		var dataLines []string
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSuffix(line, "\r")
			switch {
			case strings.HasPrefix(line, "event: "):
				eventType = line[7:]
			case strings.HasPrefix(line, "event:"):
				eventType = line[6:]
			case strings.HasPrefix(line, "data: "):
				dataLines = append(dataLines, line[6:])
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, line[5:])
			}
		}
		if eventType == "" && len(dataLines) == 0 {
			continue
		}
		var data interface{}
		if len(dataLines) > 0 {
			dataStr := strings.Join(dataLines, "\n")
			if dataStr != "" {
				var parsed interface{}
				if err := json.Unmarshal([]byte(dataStr), &parsed); err == nil {
					data = parsed
				} else {
					data = dataStr
				}
			}
		}
		events = append(events, SSEEvent{Event: eventType, Data: data})
	}
	return events
}
