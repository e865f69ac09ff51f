package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uchicago-library/ldr-ingress/internal/config"
	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Addr:            "127.0.0.1:0",
			ShutdownTimeout: time.Second,
			RequestTimeout:  time.Minute,
			MaxUploadBytes:  1 << 20,
			MultipartMemory: 1 << 10,
		},
		Services: config.ServicesConfig{
			PremisEndpoint:        "http://127.0.0.1:1/premis",
			MaterialsuiteEndpoint: "http://127.0.0.1:1/ms",
			AccsEndpoint:          "http://127.0.0.1:1/accs",
			Timeout:               time.Second,
		},
		Workspace: config.WorkspaceConfig{TempDir: t.TempDir()},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func TestNewServerRoutes(t *testing.T) {
	server, err := newServer(testConfig(t), prometheus.NewRegistry())
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestNewServerReportsUnreachableDescriptionService(t *testing.T) {
	server, err := newServer(testConfig(t), prometheus.NewRegistry())
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err = app.Run([]string{"ldr-ingress", "upload", "--server", ts.URL, "--accession", "acc-9", path})
	require.Error(t, err)

	var resp ingress.IngestResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, ingress.StatusFailure, resp.Status)
	assert.Equal(t, ingress.StageDescribed, resp.Stage)
}

func TestNewServerDisablesMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	server, err := newServer(cfg, prometheus.NewRegistry())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRequiresAccession(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	err := app.Run([]string{"ldr-ingress", "upload", "file.bin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accession")
}

func TestInvalidLogFormat(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	err := app.Run([]string{"ldr-ingress", "--log-format", "xml", "upload", "--accession", "new", "file.bin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log format")
}
