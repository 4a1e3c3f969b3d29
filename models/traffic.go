package models

// TrafficEntry is one fully completed HTTP exchange captured by a proxy
// instance. Entries are only ever written after both the full request and
// the full response are available; no partial exchange is persisted.
type TrafficEntry struct {
	// Timestamp is seconds since the Unix epoch, stamped when the completed
	// exchange is appended to the log.
	Timestamp float64         `json:"timestamp"`
	Request   TrafficRequest  `json:"request"`
	Response  TrafficResponse `json:"response"`
}

// TrafficRequest holds the client side of an exchange. Body is the parsed
// JSON value when the payload parses as JSON, otherwise the decoded text.
type TrafficRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    interface{}       `json:"body"`
}

// TrafficResponse holds the server side of an exchange. For a streamed
// (text/event-stream) response, Body is the concatenated raw text of the
// complete stream.
type TrafficResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       interface{}       `json:"body"`
}
