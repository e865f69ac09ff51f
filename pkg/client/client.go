package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uchicago-library/ldr-ingress/internal/checksum"
	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

// UploadRequest describes one file to ingest
type UploadRequest struct {
	// Path of the file to upload
	Path string
	// Name is sent as the display name; defaults to the base of Path
	Name string
	// AccessionID is an existing accession, or ingress.NewAccessionToken
	AccessionID string
	// MD5 is computed from the file when empty
	MD5 string
}

// Client is an HTTP client for the ingest endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new ingest client
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Minute,
		},
	}
}

// NewWithHTTPClient creates a new ingest client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Ingest uploads a file and waits for the pipeline to finish.
// A failed ingest is returned as a response with Status "failure" along with
// an error carrying the HTTP status.
func (c *Client) Ingest(ctx context.Context, req UploadRequest) (*ingress.IngestResponse, error) {
	if req.AccessionID == "" {
		return nil, fmt.Errorf("accession id is required")
	}
	if req.Name == "" {
		req.Name = filepath.Base(req.Path)
	}
	if req.MD5 == "" {
		sum, err := checksum.SumFile(ctx, req.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to compute md5: %w", err)
		}
		req.MD5 = sum
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, req, f))
	}()
	defer pr.Close()

	url := strings.TrimRight(c.baseURL, "/") + "/v1/ingest"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var ingestResp ingress.IngestResponse
	if err := json.Unmarshal(body, &ingestResp); err != nil {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return &ingestResp, fmt.Errorf("ingest failed with status %d at stage %s: %s",
			resp.StatusCode, ingestResp.Stage, ingestResp.Error)
	}

	return &ingestResp, nil
}

func writeUpload(mw *multipart.Writer, req UploadRequest, content io.Reader) error {
	fields := [][2]string{
		{ingress.FieldMD5, req.MD5},
		{ingress.FieldName, req.Name},
		{ingress.FieldAccessionID, req.AccessionID},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	fw, err := mw.CreateFormFile(ingress.FieldFile, req.Name)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return mw.Close()
}
