package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

func writeFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

type received struct {
	md5, name, accession, content string
}

func newServer(t *testing.T, status int, reply ingress.IngestResponse) (*httptest.Server, *received) {
	got := &received{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ingest", r.URL.Path)
		got.md5 = r.FormValue(ingress.FieldMD5)
		got.name = r.FormValue(ingress.FieldName)
		got.accession = r.FormValue(ingress.FieldAccessionID)
		if f, _, err := r.FormFile(ingress.FieldFile); assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			got.content = string(data)
			f.Close()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestIngestComputesChecksum(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, ingress.IngestResponse{
		Status:       ingress.StatusSuccess,
		IngestOutput: json.RawMessage(`{"id":"ms-1"}`),
	})

	resp, err := New(srv.URL).Ingest(context.Background(), UploadRequest{
		Path:        writeFile(t, "hello"),
		AccessionID: ingress.NewAccessionToken,
	})
	require.NoError(t, err)

	assert.Equal(t, ingress.StatusSuccess, resp.Status)
	assert.JSONEq(t, `{"id":"ms-1"}`, string(resp.IngestOutput))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", got.md5)
	assert.Equal(t, "hello.txt", got.name)
	assert.Equal(t, "new", got.accession)
	assert.Equal(t, "hello", got.content)
}

func TestIngestUsesDeclaredValues(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, ingress.IngestResponse{Status: ingress.StatusSuccess})

	_, err := New(srv.URL+"/").Ingest(context.Background(), UploadRequest{
		Path:        writeFile(t, "hello"),
		Name:        "greeting",
		AccessionID: "acc-9",
		MD5:         "00000000000000000000000000000000",
	})
	require.NoError(t, err)

	assert.Equal(t, "00000000000000000000000000000000", got.md5)
	assert.Equal(t, "greeting", got.name)
}

func TestIngestFailureReturnsResponse(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound, ingress.IngestResponse{
		Status:       ingress.StatusFailure,
		Stage:        ingress.StageAccessionResolved,
		Error:        "accession missing-acc not found",
		IngestOutput: json.RawMessage(`{"id":"ms-1"}`),
	})

	resp, err := New(srv.URL).Ingest(context.Background(), UploadRequest{
		Path:        writeFile(t, "hello"),
		AccessionID: "missing-acc",
	})
	require.Error(t, err)
	require.NotNil(t, resp)

	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, ingress.StageAccessionResolved, resp.Stage)
	assert.JSONEq(t, `{"id":"ms-1"}`, string(resp.IngestOutput))
}

func TestIngestValidatesLocally(t *testing.T) {
	c := New("http://127.0.0.1:0")

	_, err := c.Ingest(context.Background(), UploadRequest{Path: writeFile(t, "x")})
	assert.Error(t, err)

	_, err = c.Ingest(context.Background(), UploadRequest{
		Path:        filepath.Join(t.TempDir(), "missing"),
		AccessionID: "acc-9",
	})
	assert.Error(t, err)
}
