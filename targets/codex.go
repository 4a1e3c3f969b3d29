package targets

import (
	"probekit/models"
	"probekit/renderers"
)

// codexTarget captures the OpenAI Codex CLI. Codex talks to two upstreams:
// the model API (API-key mode) and the ChatGPT backend channels, so the
// profile runs one proxy per upstream.
func codexTarget() Target {
	return Target{
		Capture: models.CaptureProfile{
			Name: "codex",
			Proxies: []models.ProxyConfig{
				{ListenPort: 8080, UpstreamURL: "https://api.openai.com/", Purpose: "Model API (API key mode)"},
				{ListenPort: 8081, UpstreamURL: "https://chatgpt.com/", Purpose: "Backend channels"},
			},
			UpstreamProxy: "http://127.0.0.1:7890",
			EnvOverrides: map[string]string{
				"OPENAI_BASE_URL": "http://127.0.0.1:8080/v1",
			},
			ManualSteps: []string{
				`Add to ~/.codex/config.toml: chatgpt_base_url = "http://127.0.0.1:8081/backend-api/"`,
			},
			OutputDir: "tmp/codex-traffic",
		},
		Analysis: models.AnalysisProfile{
			Name:        "codex",
			ReportTitle: "Codex Traffic Analysis Report",
			Renderer:    renderers.OpenAIResponses{},
			RedactedHeaders: models.RedactedHeaderSet(
				"authorization",
				"cookie",
				"set-cookie",
				"openai-organization",
			),
		},
	}
}
