package models

import "strings"

// ProxyConfig describes a single reverse proxy endpoint: a local listen port
// forwarding to one upstream origin.
type ProxyConfig struct {
	ListenPort  int
	UpstreamURL string
	Purpose     string
}

// CaptureProfile describes everything needed to stand up traffic capture for
// one target agent system. Profiles are immutable configuration values built
// once by the target registry; CLI flags may override OutputDir and
// UpstreamProxy before the profile is used.
type CaptureProfile struct {
	Name          string
	Proxies       []ProxyConfig
	UpstreamProxy string
	EnvOverrides  map[string]string
	ManualSteps   []string
	OutputDir     string
}

// BodyRenderer turns captured request/response bodies into Markdown
// fragments for the analysis report. Implementations are per upstream API
// format; the analyzer core depends only on this interface.
type BodyRenderer interface {
	RenderRequest(body interface{}) string
	RenderResponse(body interface{}, statusCode int) string
}

// AnalysisProfile describes how to analyze and render captured traffic for
// one target agent system.
type AnalysisProfile struct {
	Name        string
	ReportTitle string
	Renderer    BodyRenderer
	// RedactedHeaders holds lowercase header names whose values must never
	// appear verbatim in a report.
	RedactedHeaders map[string]bool
}

// RedactedHeaderSet builds a case-insensitive lookup set from header names.
func RedactedHeaderSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}
