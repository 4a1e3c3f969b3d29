package core

import (
	"testing"

	"probekit/models"

	"github.com/stretchr/testify/assert"
)

func TestProxyArgs(t *testing.T) {
	cfg := models.ProxyConfig{
		ListenPort:  8080,
		UpstreamURL: "https://api.openai.com/",
		Purpose:     "Model API",
	}

	assert.Equal(t, []string{
		"proxy",
		"--listen-port", "8080",
		"--upstream-url", "https://api.openai.com/",
		"--purpose", "Model API",
	}, ProxyArgs(cfg, ""))

	withChain := ProxyArgs(cfg, "http://127.0.0.1:7890")
	assert.Contains(t, withChain, "--upstream-proxy")
	assert.Contains(t, withChain, "http://127.0.0.1:7890")
}

func TestEnvOverrideLines_SortedStable(t *testing.T) {
	lines := EnvOverrideLines(map[string]string{
		"OPENAI_BASE_URL": "http://127.0.0.1:8080/v1",
		"ALL_PROXY":       "http://127.0.0.1:8081",
	})
	assert.Equal(t, []string{
		"export ALL_PROXY=http://127.0.0.1:8081",
		"export OPENAI_BASE_URL=http://127.0.0.1:8080/v1",
	}, lines)

	assert.Empty(t, EnvOverrideLines(nil))
}
