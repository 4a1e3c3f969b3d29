package targets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Codex(t *testing.T) {
	target, err := Load("codex")
	require.NoError(t, err)

	assert.Equal(t, "codex", target.Capture.Name)
	require.Len(t, target.Capture.Proxies, 2)
	assert.Equal(t, 8080, target.Capture.Proxies[0].ListenPort)
	assert.Equal(t, "https://api.openai.com/", target.Capture.Proxies[0].UpstreamURL)
	assert.Equal(t, 8081, target.Capture.Proxies[1].ListenPort)
	assert.Equal(t, "https://chatgpt.com/", target.Capture.Proxies[1].UpstreamURL)

	assert.Equal(t, "http://127.0.0.1:8080/v1", target.Capture.EnvOverrides["OPENAI_BASE_URL"])
	assert.Equal(t, "tmp/codex-traffic", target.Capture.OutputDir)

	assert.Equal(t, "Codex Traffic Analysis Report", target.Analysis.ReportTitle)
	require.NotNil(t, target.Analysis.Renderer)
	assert.True(t, target.Analysis.RedactedHeaders["authorization"])
	assert.True(t, target.Analysis.RedactedHeaders["openai-organization"])
}

func TestLoad_UnknownTarget(t *testing.T) {
	_, err := Load("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
	assert.Contains(t, err.Error(), "codex")
}

func TestLoad_ReturnsFreshCopies(t *testing.T) {
	first, err := Load("codex")
	require.NoError(t, err)
	first.Capture.OutputDir = "/scratch/elsewhere"
	first.Capture.EnvOverrides["OPENAI_BASE_URL"] = "mutated"

	second, err := Load("codex")
	require.NoError(t, err)
	assert.Equal(t, "tmp/codex-traffic", second.Capture.OutputDir)
	assert.Equal(t, "http://127.0.0.1:8080/v1", second.Capture.EnvOverrides["OPENAI_BASE_URL"])
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"codex"}, Names())
}
