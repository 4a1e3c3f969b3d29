package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"probekit/logger"
	"probekit/models"
)

// RedactionMarker replaces sensitive header values in reports.
const RedactionMarker = "[REDACTED]"

// topKeyPathCount limits the payload-structure tables to the most frequent
// key paths.
const topKeyPathCount = 30

// Analysis holds the aggregate statistics computed over a captured log.
type Analysis struct {
	TotalRequests   int
	DurationSeconds float64
	TotalReqBytes   int
	TotalRespBytes  int

	EndpointCounts  map[string]int
	EndpointMethods map[string]map[string]bool
	MethodCounts    map[string]int
	StatusCounts    map[string]int

	RequestKeyCounts  map[string]int
	RequestKeyTypes   map[string]map[string]bool
	ResponseKeyCounts map[string]int
	ResponseKeyTypes  map[string]map[string]bool
}

// LoadEntries parses a JSONL traffic log. Malformed lines are skipped with a
// warning naming the line number; only an unreadable file is fatal.
func LoadEntries(path string) ([]models.TrafficEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open traffic log %s: %w", path, err)
	}
	defer f.Close()

	var entries []models.TrafficEntry
	reader := bufio.NewReaderSize(f, 1<<20)
	lineNo := 0
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			lineNo++
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				var entry models.TrafficEntry
				if jsonErr := json.Unmarshal([]byte(trimmed), &entry); jsonErr != nil {
					logger.Warn("Skipping malformed traffic log line %d: %v", lineNo, jsonErr)
				} else {
					entries = append(entries, entry)
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed reading traffic log %s: %w", path, err)
		}
	}
	return entries, nil
}

// TypeName classifies a decoded JSON value with a human-readable label.
// JSON numbers decode as float64; integral values are reported as "int".
func TypeName(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return "int"
		}
		return "float"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// keyPathType is one observation from the payload walk.
type keyPathType struct {
	Path string
	Type string
}

// extractKeyPaths recursively collects dotted key paths with value types.
// Array elements collapse to a single "[]" segment so repeated list items
// count as one path.
func extractKeyPaths(obj interface{}, prefix string) []keyPathType {
	var keys []keyPathType
	switch val := obj.(type) {
	case map[string]interface{}:
		names := make([]string, 0, len(val))
		for k := range val {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			full := k
			if prefix != "" {
				full = prefix + "." + k
			}
			keys = append(keys, keyPathType{Path: full, Type: TypeName(val[k])})
			keys = append(keys, extractKeyPaths(val[k], full)...)
		}
	case []interface{}:
		if len(val) > 0 {
			keys = append(keys, extractKeyPaths(val[0], prefix+"[]")...)
		}
	}
	return keys
}

// Analyze computes aggregate statistics across all valid entries.
func Analyze(entries []models.TrafficEntry) *Analysis {
	a := &Analysis{
		EndpointCounts:    make(map[string]int),
		EndpointMethods:   make(map[string]map[string]bool),
		MethodCounts:      make(map[string]int),
		StatusCounts:      make(map[string]int),
		RequestKeyCounts:  make(map[string]int),
		RequestKeyTypes:   make(map[string]map[string]bool),
		ResponseKeyCounts: make(map[string]int),
		ResponseKeyTypes:  make(map[string]map[string]bool),
	}
	a.TotalRequests = len(entries)

	var minTS, maxTS float64
	seenTS := false

	for _, entry := range entries {
		endpoint := "/"
		if parsed, err := url.Parse(entry.Request.URL); err == nil && parsed.Path != "" {
			endpoint = parsed.Path
		}
		method := entry.Request.Method
		if method == "" {
			method = "?"
		}

		a.EndpointCounts[endpoint]++
		a.MethodCounts[method]++
		if a.EndpointMethods[endpoint] == nil {
			a.EndpointMethods[endpoint] = make(map[string]bool)
		}
		a.EndpointMethods[endpoint][method] = true
		if entry.Response.StatusCode != 0 {
			a.StatusCounts[strconv.Itoa(entry.Response.StatusCode)]++
		}

		if ts := entry.Timestamp; ts != 0 {
			if !seenTS || ts < minTS {
				minTS = ts
			}
			if !seenTS || ts > maxTS {
				maxTS = ts
			}
			seenTS = true
		}

		a.TotalReqBytes += bodyByteSize(entry.Request.Body)
		a.TotalRespBytes += bodyByteSize(entry.Response.Body)

		censusBody(entry.Request.Body, a.RequestKeyCounts, a.RequestKeyTypes)
		censusBody(entry.Response.Body, a.ResponseKeyCounts, a.ResponseKeyTypes)
	}

	if seenTS {
		a.DurationSeconds = math.Round((maxTS-minTS)*10) / 10
	}
	return a
}

func censusBody(body interface{}, counts map[string]int, types map[string]map[string]bool) {
	obj, ok := body.(map[string]interface{})
	if !ok {
		return
	}
	for _, kt := range extractKeyPaths(obj, "") {
		counts[kt.Path]++
		if types[kt.Path] == nil {
			types[kt.Path] = make(map[string]bool)
		}
		types[kt.Path][kt.Type] = true
	}
}

// bodyByteSize measures a captured body's payload size: string bodies by
// their UTF-8 length, structured bodies by their serialized JSON length.
func bodyByteSize(body interface{}) int {
	switch val := body.(type) {
	case nil:
		return 0
	case string:
		return len(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return 0
		}
		return len(b)
	}
}

// RedactHeaders replaces sensitive header values with the redaction marker.
// The whole value goes, not a suffix: header values like bearer tokens carry
// the secret from the first byte.
func RedactHeaders(headers map[string]string, redacted map[string]bool) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if redacted[strings.ToLower(k)] {
			result[k] = RedactionMarker
		} else {
			result[k] = v
		}
	}
	return result
}

// countedKey supports most-common ordering: count descending, key ascending
// for determinism.
type countedKey struct {
	Key   string
	Count int
}

func mostCommon(counts map[string]int, limit int) []countedKey {
	out := make([]countedKey, 0, len(counts))
	for k, c := range counts {
		out = append(out, countedKey{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortedSetNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FormatReport assembles the complete Markdown analysis report: aggregate
// tables first, then the full conversation log rendered through the
// profile's body renderer.
func FormatReport(a *Analysis, entries []models.TrafficEntry, inputPath string, profile models.AnalysisProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", profile.ReportTitle)
	fmt.Fprintf(&b, "**Source:** `%s`\n", inputPath)
	fmt.Fprintf(&b, "**Generated:** %s\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**Total requests:** %d\n", a.TotalRequests)
	fmt.Fprintf(&b, "**Capture duration:** %.1fs\n", a.DurationSeconds)
	fmt.Fprintf(&b, "**Total request payload:** %s bytes\n", GroupDigits(a.TotalReqBytes))
	fmt.Fprintf(&b, "**Total response payload:** %s bytes\n\n", GroupDigits(a.TotalRespBytes))

	b.WriteString("## Endpoints\n\n")
	b.WriteString("| Endpoint | Methods | Count |\n")
	b.WriteString("|----------|---------|-------|\n")
	for _, ek := range mostCommon(a.EndpointCounts, 0) {
		methods := strings.Join(sortedSetNames(a.EndpointMethods[ek.Key]), ", ")
		fmt.Fprintf(&b, "| `%s` | %s | %d |\n", ek.Key, methods, ek.Count)
	}
	b.WriteString("\n")

	b.WriteString("## HTTP Methods\n\n")
	b.WriteString("| Method | Count |\n")
	b.WriteString("|--------|-------|\n")
	for _, mk := range mostCommon(a.MethodCounts, 0) {
		fmt.Fprintf(&b, "| %s | %d |\n", mk.Key, mk.Count)
	}
	b.WriteString("\n")

	b.WriteString("## Response Status Codes\n\n")
	b.WriteString("| Status | Count |\n")
	b.WriteString("|--------|-------|\n")
	for _, sk := range mostCommon(a.StatusCounts, 0) {
		fmt.Fprintf(&b, "| %s | %d |\n", sk.Key, sk.Count)
	}
	b.WriteString("\n")

	writeKeyPathTable(&b, "Request Payload Structure (Top Keys)", a.RequestKeyCounts, a.RequestKeyTypes)
	writeKeyPathTable(&b, "Response Payload Structure (Top Keys)", a.ResponseKeyCounts, a.ResponseKeyTypes)

	b.WriteString(formatConversations(entries, profile))
	return b.String()
}

func writeKeyPathTable(b *strings.Builder, title string, counts map[string]int, types map[string]map[string]bool) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	b.WriteString("| Key Path | Type | Occurrences |\n")
	b.WriteString("|----------|------|-------------|\n")
	for _, kk := range mostCommon(counts, topKeyPathCount) {
		fmt.Fprintf(b, "| `%s` | %s | %d |\n", kk.Key, strings.Join(sortedSetNames(types[kk.Key]), ", "), kk.Count)
	}
	b.WriteString("\n")
}

// formatConversations renders the per-exchange sections in chronological
// (captured) order. A renderer panic on one entry degrades that entry to an
// error placeholder instead of aborting the report.
func formatConversations(entries []models.TrafficEntry, profile models.AnalysisProfile) string {
	var b strings.Builder
	b.WriteString("## Full Conversation Log\n\n")

	for i, entry := range entries {
		ts := "?"
		if entry.Timestamp != 0 {
			sec := int64(entry.Timestamp)
			nsec := int64((entry.Timestamp - float64(sec)) * 1e9)
			ts = time.Unix(sec, nsec).UTC().Format("15:04:05.000")
		}

		fmt.Fprintf(&b, "### Request %d: `%s %s` → %d\n", i+1, entry.Request.Method, entry.Request.URL, entry.Response.StatusCode)
		fmt.Fprintf(&b, "**Time:** %s UTC\n\n", ts)

		writeHeaderBlock(&b, "Request Headers", entry.Request.Headers, profile.RedactedHeaders)

		b.WriteString("#### Request Body\n\n")
		b.WriteString(renderSafe(i+1, "request", func() string {
			return profile.Renderer.RenderRequest(entry.Request.Body)
		}))
		b.WriteString("\n\n")

		writeHeaderBlock(&b, "Response Headers", entry.Response.Headers, profile.RedactedHeaders)

		b.WriteString("#### Response Body\n\n")
		b.WriteString(renderSafe(i+1, "response", func() string {
			return profile.Renderer.RenderResponse(entry.Response.Body, entry.Response.StatusCode)
		}))
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}

func writeHeaderBlock(b *strings.Builder, title string, headers map[string]string, redacted map[string]bool) {
	fmt.Fprintf(b, "<details>\n<summary><b>%s</b></summary>\n\n```\n", title)
	clean := RedactHeaders(headers, redacted)
	for _, name := range sortedMapKeys(clean) {
		fmt.Fprintf(b, "%s: %s\n", name, clean[name])
	}
	b.WriteString("```\n</details>\n\n")
}

func sortedMapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderSafe shields the report from a misbehaving body renderer.
func renderSafe(entryNo int, side string, render func() string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Body renderer panic on entry %d (%s): %v", entryNo, side, r)
			out = fmt.Sprintf("*(render error on %s body: %v)*", side, r)
		}
	}()
	return render()
}

// GroupDigits formats n with thousands separators. Shared with the body
// renderers, which quote byte and token counts the same way.
func GroupDigits(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
