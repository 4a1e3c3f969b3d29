package renderers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderRequest_NoBody(t *testing.T) {
	r := OpenAIResponses{}
	assert.Equal(t, "*(no body)*", r.RenderRequest(nil))
}

func TestRenderRequest_StringBody(t *testing.T) {
	r := OpenAIResponses{}
	out := r.RenderRequest("raw text payload")
	assert.Contains(t, out, "raw text payload")
	assert.Contains(t, out, "<details>")
}

func TestRenderRequest_ResponsesPayload(t *testing.T) {
	r := OpenAIResponses{}
	longContent := strings.Repeat("x", 200)
	body := map[string]interface{}{
		"model":               "gpt-5",
		"stream":              true,
		"parallel_tool_calls": false,
		"tool_choice":         "auto",
		"reasoning":           map[string]interface{}{"summary": "detailed"},
		"instructions":        "You are a coding agent.",
		"input": []interface{}{
			map[string]interface{}{"role": "user", "content": "hello"},
			map[string]interface{}{
				"role": "assistant",
				"content": []interface{}{
					map[string]interface{}{"type": "output_text", "text": longContent},
				},
			},
		},
		"tools": []interface{}{
			map[string]interface{}{"type": "function", "name": "shell"},
		},
	}

	out := r.RenderRequest(body)

	assert.Contains(t, out, "**Model:** `gpt-5`")
	assert.Contains(t, out, "**stream:** `true`")
	assert.Contains(t, out, "**tool_choice:** `auto`")
	assert.Contains(t, out, "**parallel_tool_calls:** `false`")
	assert.Contains(t, out, "**reasoning:** `detailed`")

	assert.Contains(t, out, "<b>System Instructions</b> (23 chars)")
	assert.Contains(t, out, "You are a coding agent.")

	assert.Contains(t, out, "**Input Messages** (2 items):")
	assert.Contains(t, out, "| 0 | user |")
	assert.Contains(t, out, "hello")

	// Long message content gets a truncated preview plus a full-content
	// disclosure section, so nothing captured is lost.
	assert.Contains(t, out, strings.Repeat("x", 80)+"...")
	assert.Contains(t, out, "Message 1 (assistant) full content (200 chars)")
	assert.Contains(t, out, longContent)

	assert.Contains(t, out, "<b>Tools</b> (1 defined)")
	assert.Contains(t, out, "- `shell` (function)")
}

func TestRenderRequest_UnknownModelDefault(t *testing.T) {
	r := OpenAIResponses{}
	out := r.RenderRequest(map[string]interface{}{"input": []interface{}{}})
	assert.Contains(t, out, "**Model:** `unknown`")
}

func TestRenderResponse_SSEStreamReassembly(t *testing.T) {
	r := OpenAIResponses{}
	raw := strings.Join([]string{
		"event: response.output_text.delta\ndata: {\"delta\": \"Hel\"}",
		"event: response.output_text.delta\ndata: {\"delta\": \"lo\"}",
		"event: response.output_text.delta\ndata: {\"delta\": \" world\"}",
		"event: response.reasoning_summary_text.delta\ndata: {\"delta\": \"thinking...\"}",
		"event: response.function_call_arguments.done\ndata: {\"name\": \"shell\", \"call_id\": \"call_1\", \"arguments\": \"{\\\"cmd\\\": \\\"ls\\\"}\"}",
		"event: response.completed\ndata: {\"response\": {\"usage\": {\"input_tokens\": 1200, \"output_tokens\": 34, \"total_tokens\": 1234, \"input_tokens_details\": {\"cached_tokens\": 100}, \"output_tokens_details\": {\"reasoning_tokens\": 8}}}}",
	}, "\n\n") + "\n\n"

	out := r.RenderResponse(raw, 200)

	assert.Contains(t, out, "**SSE Stream**")
	assert.Contains(t, out, "6 events")
	assert.Contains(t, out, "| `response.output_text.delta` | 3 |")

	// Deltas concatenate in stream order.
	assert.Contains(t, out, "Hello world")
	assert.Contains(t, out, "thinking...")

	assert.Contains(t, out, "**Tool Calls** (1):")
	assert.Contains(t, out, "- `shell` (call_id: `call_1`)")
	assert.Contains(t, out, `{"cmd": "ls"}`)

	assert.Contains(t, out, "**Usage:** 1,200 input | 34 output | 1,234 total (100 cached, 8 reasoning)")
}

func TestRenderResponse_LongToolArgumentsTruncated(t *testing.T) {
	r := OpenAIResponses{}
	longArgs := strings.Repeat("a", 400)
	raw := "event: response.function_call_arguments.done\n" +
		"data: {\"name\": \"write_file\", \"call_id\": \"call_9\", \"arguments\": \"" + longArgs + "\"}\n\n"

	out := r.RenderResponse(raw, 200)
	assert.Contains(t, out, strings.Repeat("a", 300)+"...")
	assert.NotContains(t, out, strings.Repeat("a", 301))
}

func TestRenderResponse_PlainJSONObject(t *testing.T) {
	r := OpenAIResponses{}
	out := r.RenderResponse(map[string]interface{}{"error": map[string]interface{}{"code": "rate_limited"}}, 429)

	assert.Contains(t, out, "```json")
	assert.Contains(t, out, `"rate_limited"`)
	assert.Contains(t, out, "<details>")
}

func TestRenderResponse_PlainTextBody(t *testing.T) {
	r := OpenAIResponses{}
	out := r.RenderResponse("upstream unavailable", 502)
	assert.Contains(t, out, "upstream unavailable")
	assert.NotContains(t, out, "**SSE Stream**")
}

func TestRenderResponse_NoBody(t *testing.T) {
	r := OpenAIResponses{}
	assert.Equal(t, "*(no body)*", r.RenderResponse(nil, 204))
}
