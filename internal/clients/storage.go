package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/uchicago-library/ldr-ingress/internal/ingest"
)

// StorageClient submits content and its descriptive record to long-term storage
type StorageClient struct {
	base
}

// NewStorageClient creates a client for the Storage Service endpoint
func NewStorageClient(endpoint string, opts ...Option) *StorageClient {
	return &StorageClient{base: newBase(endpoint, opts)}
}

// Store posts the content and record as a two-part multipart body.
// A nil error means the Storage Service has durably accepted the object.
func (c *StorageClient) Store(ctx context.Context, contentPath, recordPath string) (ingest.StorageAck, error) {
	ack, err := c.store(ctx, contentPath, recordPath)
	c.observe(ServiceStorage, err)
	return ack, err
}

func (c *StorageClient) store(ctx context.Context, contentPath, recordPath string) (ingest.StorageAck, error) {
	body, contentType := multipartBody([]formPart{
		{name: "content", path: contentPath, fileName: "content"},
		{name: "premis", path: recordPath, fileName: "premis"},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		body.Close()
		return nil, &ingest.StorageError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ingest.StorageError{Err: fmt.Errorf("failed to post content: %w", err)}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &ingest.StorageError{StatusCode: resp.StatusCode, Body: errorBody(resp)}
	}

	reply, err := readReply(resp)
	if err != nil {
		return nil, &ingest.StorageError{Err: err}
	}
	if !json.Valid(reply) {
		return nil, &ingest.StorageError{Err: fmt.Errorf("%w: reply is not JSON", ingest.ErrMalformedResponse)}
	}
	return ingest.StorageAck(reply), nil
}
