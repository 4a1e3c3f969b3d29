// Package renderers holds per-API body renderers for the analysis report.
// Each renderer implements models.BodyRenderer for one upstream wire format.
package renderers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"probekit/core"

	"github.com/tidwall/gjson"
)

// OpenAIResponses renders request and response bodies in the OpenAI
// Responses API format: request config/instructions/input/tools summaries
// and SSE stream reconstruction (output text, reasoning, tool calls, usage).
// Shared across any target that speaks the OpenAI API.
type OpenAIResponses struct{}

// RenderRequest summarizes a Responses API request body as Markdown. The
// summary is display-level only: every captured field stays recoverable from
// the fragment via a disclosure section.
func (OpenAIResponses) RenderRequest(body interface{}) string {
	if body == nil {
		return "*(no body)*"
	}
	if text, ok := body.(string); ok {
		return detailsBlock(fmt.Sprintf("<b>Body</b> (%s bytes)", core.GroupDigits(len(text))), "", text)
	}
	obj, ok := body.(map[string]interface{})
	if !ok {
		return prettyJSONBlock(body)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Sprintf("*(unrenderable body: %v)*", err)
	}

	var lines []string

	model := gjson.GetBytes(raw, "model")
	configParts := []string{fmt.Sprintf("**Model:** `%s`", stringOr(model, "unknown"))}
	for _, key := range []string{"stream", "tool_choice", "parallel_tool_calls", "store"} {
		if field := gjson.GetBytes(raw, key); field.Exists() {
			configParts = append(configParts, fmt.Sprintf("**%s:** `%s`", key, scalarLabel(field)))
		}
	}
	if reasoning := gjson.GetBytes(raw, "reasoning"); reasoning.IsObject() {
		summary := reasoning.Get("summary")
		if !summary.Exists() {
			summary = reasoning.Get("effort")
		}
		configParts = append(configParts, fmt.Sprintf("**reasoning:** `%s`", summary.String()))
	}
	lines = append(lines, strings.Join(configParts, " | "), "")

	if instructions := gjson.GetBytes(raw, "instructions").String(); instructions != "" {
		lines = append(lines, detailsBlock(
			fmt.Sprintf("<b>System Instructions</b> (%s chars)", core.GroupDigits(len(instructions))),
			"", instructions), "")
	}

	if input := gjson.GetBytes(raw, "input"); input.IsArray() {
		msgs := input.Array()
		if len(msgs) > 0 {
			lines = append(lines, fmt.Sprintf("**Input Messages** (%d items):", len(msgs)), "")
			lines = append(lines, "| # | Role | Type | Content Preview |")
			lines = append(lines, "|---|------|------|-----------------|")
			for idx, msg := range msgs {
				role := stringOr(msg.Get("role"), "-")
				msgType := stringOr(msg.Get("type"), "-")
				preview := messagePreview(msg.Get("content"), 80)
				lines = append(lines, fmt.Sprintf("| %d | %s | %s | %s |", idx, role, msgType, preview))
			}
			lines = append(lines, "")

			for idx, msg := range msgs {
				fullText := messageFullText(msg.Get("content"))
				if len(fullText) > 120 {
					role := stringOr(msg.Get("role"), "-")
					lines = append(lines, detailsBlock(
						fmt.Sprintf("Message %d (%s) full content (%s chars)", idx, role, core.GroupDigits(len(fullText))),
						"", fullText), "")
				}
			}
		}
	}

	if tools := gjson.GetBytes(raw, "tools"); tools.IsArray() && len(tools.Array()) > 0 {
		var toolItems []string
		for _, t := range tools.Array() {
			name := stringOr(t.Get("name"), "(unnamed)")
			toolType := stringOr(t.Get("type"), "function")
			toolItems = append(toolItems, fmt.Sprintf("- `%s` (%s)", name, toolType))
		}
		lines = append(lines, fmt.Sprintf("<details>\n<summary><b>Tools</b> (%d defined)</summary>\n\n%s\n</details>",
			len(toolItems), strings.Join(toolItems, "\n")), "")
	}

	return strings.Join(lines, "\n")
}

// RenderResponse summarizes a Responses API response body as Markdown. SSE
// stream bodies are decoded and reconstructed; plain JSON bodies are
// pretty-printed in a disclosure section.
func (OpenAIResponses) RenderResponse(body interface{}, statusCode int) string {
	if body == nil {
		return "*(no body)*"
	}

	text, ok := body.(string)
	if !ok {
		return prettyJSONBlock(body)
	}

	trimmed := strings.TrimLeft(text, " \t\r\n")
	if !strings.HasPrefix(trimmed, "event:") && !strings.HasPrefix(trimmed, "data:") {
		return detailsBlock(fmt.Sprintf("<b>Body</b> (%s bytes)", core.GroupDigits(len(text))), "", text)
	}

	events := core.ParseSSEEvents(text)
	var lines []string
	lines = append(lines, fmt.Sprintf("**SSE Stream** (%s bytes, %d events)", core.GroupDigits(len(text)), len(events)), "")

	lines = append(lines, "| Event Type | Count |")
	lines = append(lines, "|------------|-------|")
	for _, ec := range eventTypeCounts(events) {
		lines = append(lines, fmt.Sprintf("| `%s` | %d |", ec.name, ec.count))
	}
	lines = append(lines, "")

	var outputParts, reasoningParts []string
	var toolCalls []toolCall
	var usageData []byte

	for _, e := range events {
		data, ok := e.Data.(map[string]interface{})
		if !ok {
			continue
		}
		switch e.Event {
		case "response.output_text.delta":
			outputParts = append(outputParts, stringField(data, "delta"))
		case "response.reasoning_summary_text.delta":
			reasoningParts = append(reasoningParts, stringField(data, "delta"))
		case "response.function_call_arguments.done":
			name := stringField(data, "name")
			if name == "" {
				name = "(unnamed)"
			}
			toolCalls = append(toolCalls, toolCall{
				Name:      name,
				CallID:    stringField(data, "call_id"),
				Arguments: stringField(data, "arguments"),
			})
		case "response.completed":
			if raw, err := json.Marshal(data); err == nil {
				usageData = raw
			}
		}
	}

	if len(outputParts) > 0 {
		outputText := strings.Join(outputParts, "")
		lines = append(lines, detailsBlock(
			fmt.Sprintf("<b>Output Text</b> (%s chars)", core.GroupDigits(len(outputText))), "", outputText), "")
	}

	if len(reasoningParts) > 0 {
		reasoningText := strings.Join(reasoningParts, "")
		lines = append(lines, detailsBlock(
			fmt.Sprintf("<b>Reasoning Summary</b> (%s chars)", core.GroupDigits(len(reasoningText))), "", reasoningText), "")
	}

	if len(toolCalls) > 0 {
		lines = append(lines, fmt.Sprintf("**Tool Calls** (%d):", len(toolCalls)), "")
		for _, tc := range toolCalls {
			lines = append(lines, fmt.Sprintf("- `%s` (call_id: `%s`)", tc.Name, tc.CallID))
			if tc.Arguments != "" {
				argsPreview := tc.Arguments
				if len(argsPreview) > 300 {
					argsPreview = argsPreview[:300] + "..."
				}
				lines = append(lines, fmt.Sprintf("  ```\n  %s\n  ```", argsPreview))
			}
		}
		lines = append(lines, "")
	}

	if usage := gjson.GetBytes(usageData, "response.usage"); usage.IsObject() {
		usageParts := []string{
			fmt.Sprintf("%s input", core.GroupDigits(int(usage.Get("input_tokens").Int()))),
			fmt.Sprintf("%s output", core.GroupDigits(int(usage.Get("output_tokens").Int()))),
			fmt.Sprintf("%s total", core.GroupDigits(int(usage.Get("total_tokens").Int()))),
		}
		var detailParts []string
		if cached := usage.Get("input_tokens_details.cached_tokens").Int(); cached > 0 {
			detailParts = append(detailParts, fmt.Sprintf("%s cached", core.GroupDigits(int(cached))))
		}
		if reasoning := usage.Get("output_tokens_details.reasoning_tokens").Int(); reasoning > 0 {
			detailParts = append(detailParts, fmt.Sprintf("%s reasoning", core.GroupDigits(int(reasoning))))
		}
		usageStr := "**Usage:** " + strings.Join(usageParts, " | ")
		if len(detailParts) > 0 {
			usageStr += fmt.Sprintf(" (%s)", strings.Join(detailParts, ", "))
		}
		lines = append(lines, usageStr, "")
	}

	return strings.Join(lines, "\n")
}

type toolCall struct {
	Name      string
	CallID    string
	Arguments string
}

type eventCount struct {
	name  string
	count int
}

func eventTypeCounts(events []core.SSEEvent) []eventCount {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Event]++
	}
	out := make([]eventCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, eventCount{name: name, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

// messagePreview returns a single-line preview of message content: a string
// field directly, or the joined text parts of a content list.
func messagePreview(content gjson.Result, maxLen int) string {
	text := joinedContentText(content, " ")
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if text == "" {
		if !content.Exists() {
			return "*(none)*"
		}
		return "*(empty)*"
	}
	if len(text) > maxLen {
		return text[:maxLen] + "..."
	}
	return text
}

// messageFullText extracts the complete text carried by message content.
func messageFullText(content gjson.Result) string {
	return joinedContentText(content, "\n")
}

func joinedContentText(content gjson.Result, sep string) string {
	switch {
	case !content.Exists():
		return ""
	case content.Type == gjson.String:
		return content.String()
	case content.IsArray():
		var texts []string
		for _, item := range content.Array() {
			if item.IsObject() {
				texts = append(texts, item.Get("text").String())
			}
		}
		return strings.Join(texts, sep)
	default:
		return content.Raw
	}
}

func stringField(data map[string]interface{}, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func stringOr(r gjson.Result, fallback string) string {
	if s := r.String(); s != "" {
		return s
	}
	return fallback
}

// scalarLabel renders a config field compactly: bare strings stay bare,
// everything else keeps its JSON form.
func scalarLabel(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return r.Raw
}

func detailsBlock(summary, lang, content string) string {
	return fmt.Sprintf("<details>\n<summary>%s</summary>\n\n```%s\n%s\n```\n</details>", summary, lang, content)
}

// prettyJSONBlock renders any structured (non-string) body as indented JSON
// inside a disclosure section.
func prettyJSONBlock(body interface{}) string {
	formatted, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Sprintf("*(unrenderable body: %v)*", err)
	}
	return detailsBlock(fmt.Sprintf("<b>Body</b> (%s bytes)", core.GroupDigits(len(formatted))), "json", string(formatted))
}
