package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSEEvents_Basic(t *testing.T) {
	raw := "event: response.output_text.delta\ndata: {\"delta\": \"Hel\"}\n\n" +
		"event: response.output_text.delta\ndata: {\"delta\": \"lo\"}\n\n"

	events := ParseSSEEvents(raw)
	require.Len(t, events, 2)
	assert.Equal(t, "response.output_text.delta", events[0].Event)

	data, ok := events[0].Data.(map[string]interface{})
	require.True(t, ok, "JSON data payloads should decode to maps")
	assert.Equal(t, "Hel", data["delta"])
}

func TestParseSSEEvents_EmptyInput(t *testing.T) {
	assert.Empty(t, ParseSSEEvents(""))
	assert.Empty(t, ParseSSEEvents("\n\n\n\n"))
}

func TestParseSSEEvents_NoTrailingTerminator(t *testing.T) {
	// A final record without its terminating blank line still counts.
	events := ParseSSEEvents("data: {\"x\": 1}")
	require.Len(t, events, 1)
	assert.Equal(t, "", events[0].Event)

	data := events[0].Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["x"])
}

func TestParseSSEEvents_MultiDataLinesJoined(t *testing.T) {
	events := ParseSSEEvents("data: first\ndata: second\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "first\nsecond", events[0].Data)
}

func TestParseSSEEvents_EventOnlyRecord(t *testing.T) {
	events := ParseSSEEvents("event: response.completed\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "response.completed", events[0].Event)
	assert.Nil(t, events[0].Data)
}

func TestParseSSEEvents_NonJSONDataStaysRaw(t *testing.T) {
	events := ParseSSEEvents("data: [DONE\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "[DONE", events[0].Data)
}

func TestParseSSEEvents_CRLFLines(t *testing.T) {
	events := ParseSSEEvents("event: ping\r\ndata: {}\r\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "ping", events[0].Event)
}

func TestParseSSEEvents_Deterministic(t *testing.T) {
	raw := "event: a\ndata: 1\n\nevent: b\ndata: 2\n\n"
	first := ParseSSEEvents(raw)
	second := ParseSSEEvents(raw)
	assert.Equal(t, first, second)
}
