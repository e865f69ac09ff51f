package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/uchicago-library/ldr-ingress/internal/ingest"
)

// ArtifactWriter stores a document in the request's workspace
type ArtifactWriter interface {
	WriteArtifact(r io.Reader) (string, error)
}

// DescribeRequest is the input to DescriptionClient.Describe
type DescribeRequest struct {
	ContentPath string
	Checksum    string
	DisplayName string
	Workspace   ArtifactWriter
}

// Description is the outcome of a successful describe call
type Description struct {
	ObjectID   string
	RecordPath string
}

// DescriptionClient submits content to the PREMIS Description Service
type DescriptionClient struct {
	base
}

// NewDescriptionClient creates a client for the Description Service endpoint
func NewDescriptionClient(endpoint string, opts ...Option) *DescriptionClient {
	return &DescriptionClient{base: newBase(endpoint, opts)}
}

// Describe posts the content and returns the minted object identifier.
// The returned record is saved to the workspace for the Storage Service.
func (c *DescriptionClient) Describe(ctx context.Context, req DescribeRequest) (*Description, error) {
	desc, err := c.describe(ctx, req)
	c.observe(ServiceDescription, err)
	return desc, err
}

func (c *DescriptionClient) describe(ctx context.Context, req DescribeRequest) (*Description, error) {
	parts := []formPart{{name: "md5", value: req.Checksum}}
	if req.DisplayName != "" {
		parts = append(parts, formPart{name: "originalName", value: req.DisplayName})
	}
	parts = append(parts, formPart{name: "file", path: req.ContentPath, fileName: "file"})

	body, contentType := multipartBody(parts)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		body.Close()
		return nil, &ingest.DescriptionError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ingest.DescriptionError{Err: fmt.Errorf("failed to post content: %w", err)}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &ingest.DescriptionError{StatusCode: resp.StatusCode, Body: errorBody(resp)}
	}

	record, err := readReply(resp)
	if err != nil {
		return nil, &ingest.DescriptionError{Err: err}
	}
	if !utf8.Valid(record) {
		return nil, &ingest.DescriptionError{
			Malformed: true,
			Err:       fmt.Errorf("%w: record is not valid utf-8", ingest.ErrMalformedResponse),
		}
	}

	objectID, err := objectIdentifier(record)
	if err != nil {
		return nil, &ingest.DescriptionError{
			Malformed: true,
			Err:       errors.Join(ingest.ErrMalformedResponse, err),
		}
	}

	recordPath, err := req.Workspace.WriteArtifact(bytes.NewReader(record))
	if err != nil {
		return nil, &ingest.IOError{Op: "save descriptive record", Err: err}
	}

	return &Description{ObjectID: objectID, RecordPath: recordPath}, nil
}
