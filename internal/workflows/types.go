package workflows

import (
	"context"

	"github.com/uchicago-library/ldr-ingress/internal/clients"
	"github.com/uchicago-library/ldr-ingress/internal/ingest"
	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

// WorkflowContext contains context for workflow execution
type WorkflowContext struct {
	Ctx     context.Context
	Request ingest.Request
	RunID   string
}

// WorkflowResult contains the result of workflow execution
type WorkflowResult struct {
	ingest.Result

	// Reached lists the pipeline states entered, in order
	Reached []ingress.Stage
}

// Workflow defines the interface for processing workflows
type Workflow interface {
	// Execute runs the workflow
	Execute(wctx *WorkflowContext) (*WorkflowResult, error)

	// Name returns the workflow name
	Name() string
}

// ChecksumVerifier checks uploaded content against the declared digest
type ChecksumVerifier interface {
	Verify(ctx context.Context, contentPath, declared string) (string, error)
}

// Describer mints a descriptive record and object identifier for content
type Describer interface {
	Describe(ctx context.Context, req clients.DescribeRequest) (*clients.Description, error)
}

// Storer commits content and its record to durable storage
type Storer interface {
	Store(ctx context.Context, contentPath, recordPath string) (ingest.StorageAck, error)
}

// AccessionResolver confirms or mints the destination accession
type AccessionResolver interface {
	Resolve(ctx context.Context, token string) (ingest.AccessionContext, error)
}

// MembershipRegistrar adds an object to a resolved accession
type MembershipRegistrar interface {
	AddMember(ctx context.Context, acc ingest.AccessionContext, objectID string) (ingest.MembershipAck, error)
}
