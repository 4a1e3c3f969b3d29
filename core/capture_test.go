package core

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"testing"

	"probekit/models"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func brotliBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeCapturedBody_JSON(t *testing.T) {
	header := http.Header{"Content-Type": []string{"application/json"}}
	body := decodeCapturedBody([]byte(`{"model": "gpt-5"}`), header)

	obj, ok := body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "gpt-5", obj["model"])
}

func TestDecodeCapturedBody_Empty(t *testing.T) {
	assert.Nil(t, decodeCapturedBody(nil, http.Header{}))
	assert.Nil(t, decodeCapturedBody([]byte{}, http.Header{}))
}

func TestDecodeCapturedBody_Gzip(t *testing.T) {
	header := http.Header{
		"Content-Encoding": []string{"gzip"},
		"Content-Type":     []string{"application/json"},
	}
	body := decodeCapturedBody(gzipBytes(t, []byte(`{"ok": true}`)), header)

	obj, ok := body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, obj["ok"])
}

func TestDecodeCapturedBody_Brotli(t *testing.T) {
	header := http.Header{
		"Content-Encoding": []string{"br"},
		"Content-Type":     []string{"application/json"},
	}
	body := decodeCapturedBody(brotliBytes(t, []byte(`{"n": 7}`)), header)

	obj, ok := body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), obj["n"])
}

func TestDecodeCapturedBody_SSEStaysRawText(t *testing.T) {
	header := http.Header{"Content-Type": []string{"text/event-stream; charset=utf-8"}}
	raw := "event: response.completed\ndata: {\"ok\": true}\n\n"

	body := decodeCapturedBody([]byte(raw), header)
	assert.Equal(t, raw, body)
}

func TestDecodeCapturedBody_UndecodableGzip(t *testing.T) {
	header := http.Header{"Content-Encoding": []string{"gzip"}}
	body := decodeCapturedBody([]byte("definitely not gzip"), header)

	s, ok := body.(string)
	require.True(t, ok)
	assert.Contains(t, s, "[undecodable body:")
	assert.Contains(t, s, "19 bytes")
}

func TestDecodeCapturedBody_InvalidUTF8(t *testing.T) {
	body := decodeCapturedBody([]byte{0xff, 0xfe, 'h', 'i'}, http.Header{})

	s, ok := body.(string)
	require.True(t, ok)
	assert.Contains(t, s, "hi")
	assert.Contains(t, s, "�")
}

func TestHeaderMap_LastValueWins(t *testing.T) {
	h := http.Header{}
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	h.Set("Content-Type", "application/json")

	m := headerMap(h)
	assert.Equal(t, "b=2", m["Set-Cookie"])
	assert.Equal(t, "application/json", m["Content-Type"])
	assert.Len(t, m, 2)
}

func TestRunProxy_RejectsBadUpstream(t *testing.T) {
	rec, err := NewRecorder(t.TempDir())
	require.NoError(t, err)

	cases := []string{"", "not-a-url", "/relative/only"}
	for _, upstream := range cases {
		cfg := models.ProxyConfig{ListenPort: 8099, UpstreamURL: upstream, Purpose: "test"}
		assert.Error(t, RunProxy(cfg, "", rec), "upstream %q should be rejected", upstream)
	}
}
