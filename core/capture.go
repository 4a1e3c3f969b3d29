package core

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"probekit/logger"
	"probekit/models"

	"github.com/andybalholm/brotli"
	"github.com/elazarl/goproxy"
)

// RunProxy starts one reverse proxy instance: listen on cfg.ListenPort,
// forward everything to cfg.UpstreamURL, and append one TrafficEntry per
// completed exchange to rec. Blocks until the listener fails. A write
// failure on the traffic log is fatal to this process; silently losing
// captured exchanges is worse than dying.
func RunProxy(cfg models.ProxyConfig, upstreamProxy string, rec *Recorder) error {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream URL %q: %w", cfg.UpstreamURL, err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return fmt.Errorf("upstream URL %q must include scheme and host", cfg.UpstreamURL)
	}

	proxy := goproxy.NewProxyHttpServer()
	proxy.Logger = log.New(io.Discard, "", 0)

	if upstreamProxy != "" {
		proxyURL, err := url.Parse(upstreamProxy)
		if err != nil {
			return fmt.Errorf("invalid upstream proxy URL %q: %w", upstreamProxy, err)
		}
		proxy.Tr.Proxy = http.ProxyURL(proxyURL)
		logger.ProxyInfo("Chaining egress through upstream proxy %s", proxyURL)
	}

	// Reverse mode: plain requests hitting the listener are rewritten to the
	// upstream origin and re-dispatched through the proxy engine so the
	// capture hooks below still see them.
	proxy.NonproxyHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Scheme = upstream.Scheme
		r.URL.Host = upstream.Host
		r.Host = upstream.Host
		proxy.ServeHTTP(w, r)
	})

	proxy.OnRequest().DoFunc(
		func(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
			ctx.UserData = captureRequest(r)
			return r, nil
		})

	proxy.OnResponse().DoFunc(
		func(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
			req, ok := ctx.UserData.(*models.TrafficRequest)
			if !ok || req == nil {
				logger.ProxyError("RESP: missing request capture for %s %s", ctx.Req.Method, ctx.Req.URL)
				return resp
			}

			entry := &models.TrafficEntry{Request: *req}
			if resp != nil {
				entry.Response = captureResponse(resp)
			}

			// Append stamps the timestamp under the log lock, so lines land
			// in stamp order even when hooks run concurrently.
			if err := rec.Append(entry); err != nil {
				logger.Fatal("Traffic log write failed, aborting proxy instance: %v", err)
			}
			logger.ProxyInfo("FLOW: %s %s -> %d", entry.Request.Method, entry.Request.URL, entry.Response.StatusCode)
			return resp
		})

	logger.ProxyInfo("Reverse proxy :%d -> %s (%s) starting, traffic log: %s",
		cfg.ListenPort, cfg.UpstreamURL, cfg.Purpose, rec.Path())
	return http.ListenAndServe(fmt.Sprintf(":%d", cfg.ListenPort), proxy)
}

// captureRequest reads and restores the request body and freezes the request
// side of the exchange. Bodies are captured losslessly; redaction is the
// analyzer's job.
func captureRequest(r *http.Request) *models.TrafficRequest {
	var bodyBytes []byte
	if r.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(r.Body)
		if err != nil {
			logger.ProxyError("REQ: error reading request body for %s %s: %v", r.Method, r.URL, err)
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	return &models.TrafficRequest{
		Method:  r.Method,
		URL:     r.URL.String(),
		Headers: headerMap(r.Header),
		Body:    decodeCapturedBody(bodyBytes, r.Header),
	}
}

// captureResponse reads and restores the response body and freezes the
// response side. By the time the engine hands us the response of a streamed
// exchange the stream has ended, so SSE bodies arrive complete.
func captureResponse(resp *http.Response) models.TrafficResponse {
	var bodyBytes []byte
	if resp.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(resp.Body)
		if err != nil {
			logger.ProxyError("RESP: error reading response body (status %d): %v", resp.StatusCode, err)
		}
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	return models.TrafficResponse{
		StatusCode: resp.StatusCode,
		Headers:    headerMap(resp.Header),
		Body:       decodeCapturedBody(bodyBytes, resp.Header),
	}
}

// headerMap flattens an http.Header into a name->value mapping, collapsing
// duplicate header names to the last value.
func headerMap(h http.Header) map[string]string {
	m := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			m[name] = values[len(values)-1]
		}
	}
	return m
}

// decodeCapturedBody turns raw body bytes into the captured body value:
// event streams stay raw text, everything else is strict-JSON-parsed with a
// text fallback. Bytes that cannot be decompressed become an explicit error
// placeholder so the exchange still counts.
func decodeCapturedBody(raw []byte, header http.Header) interface{} {
	if len(raw) == 0 {
		return nil
	}

	decoded, err := decompressBody(raw, header.Get("Content-Encoding"))
	if err != nil {
		return fmt.Sprintf("[undecodable body: %v (%d bytes)]", err, len(raw))
	}

	if strings.Contains(strings.ToLower(header.Get("Content-Type")), "text/event-stream") {
		return bestEffortText(decoded)
	}

	var parsed interface{}
	if err := json.Unmarshal(decoded, &parsed); err == nil {
		return parsed
	}
	return bestEffortText(decoded)
}

// decompressBody reverses the wire Content-Encoding. Unknown encodings pass
// through untouched.
func decompressBody(raw []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(encoding) {
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
	case "gzip":
		gzReader, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer gzReader.Close()
		return io.ReadAll(gzReader)
	default:
		return raw, nil
	}
}

// bestEffortText converts bytes to a string, replacing invalid UTF-8 rather
// than dropping the body.
func bestEffortText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
