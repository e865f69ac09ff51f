package workflows

import (
	"context"
	"log/slog"
	"time"

	"github.com/uchicago-library/ldr-ingress/internal/clients"
	"github.com/uchicago-library/ldr-ingress/internal/ingest"
	"github.com/uchicago-library/ldr-ingress/internal/logger"
	"github.com/uchicago-library/ldr-ingress/internal/metrics"
	"github.com/uchicago-library/ldr-ingress/internal/workspace"
	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

// Stages are the pipeline steps an IngestWorkflow runs, in order
type Stages struct {
	Verifier  ChecksumVerifier
	Describer Describer
	Storer    Storer
	Resolver  AccessionResolver
	Registrar MembershipRegistrar
}

// Option configures an IngestWorkflow
type Option func(*IngestWorkflow)

// WithMetrics records stage timings and outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *IngestWorkflow) {
		w.metrics = m
	}
}

// IngestWorkflow drives one upload through verification, description,
// storage, accession resolution and membership registration.
//
// Stages run strictly in order and each remote call is made at most once.
// The first failure ends the run; nothing already committed is undone, so a
// failure after the storage stage leaves the object stored but not a member
// of any accession.
type IngestWorkflow struct {
	workspaces *workspace.Manager
	stages     Stages
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewIngestWorkflow creates the ingest workflow
func NewIngestWorkflow(workspaces *workspace.Manager, stages Stages, opts ...Option) (*IngestWorkflow, error) {
	if workspaces == nil {
		return nil, ErrWorkspaceRequired
	}
	if stages.Verifier == nil || stages.Describer == nil || stages.Storer == nil ||
		stages.Resolver == nil || stages.Registrar == nil {
		return nil, ErrStageRequired
	}

	w := &IngestWorkflow{
		workspaces: workspaces,
		stages:     stages,
		logger:     logger.WithComponent("ingest-workflow"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Name returns the workflow name
func (w *IngestWorkflow) Name() string {
	return "IngestWorkflow"
}

// Execute runs the pipeline for one request. The returned error, when not
// nil, is an *ingest.StageError and is also recorded on the result.
func (w *IngestWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	log, ok := logger.Lookup(wctx.Ctx)
	if !ok {
		log = w.logger.With("run_id", wctx.RunID)
	}
	log = log.With("workflow", w.Name())

	r := &ingestRun{
		IngestWorkflow: w,
		ctx:            wctx.Ctx,
		req:            wctx.Request,
		log:            log,
		result:         &WorkflowResult{},
	}
	r.enter(ingress.StageReceived)

	log.Info("starting ingest", "accession", wctx.Request.AccessionToken)
	err := r.run()
	res := r.result

	if err != nil {
		stage, _ := ingest.StageOf(err)
		res.Status = ingress.StatusFailure
		res.Stage = stage
		res.Err = err

		attrs := []any{"stage", stage, "error", err}
		// TODO: decide between resolving the accession before the storage
		// commit and retrying the accession suffix keyed by the object id.
		if res.StoredUnlinked() {
			attrs = append(attrs, "stored_unlinked", true, "object_id", res.ObjectID)
			w.metrics.ObserveStoredUnlinked()
		}
		log.Error("ingest failed", attrs...)
		w.metrics.ObserveIngest(res.Status, string(stage))
		return res, err
	}

	res.Status = ingress.StatusSuccess
	res.Stage = ingress.StageSucceeded
	r.enter(ingress.StageSucceeded)
	log.Info("ingest succeeded", "object_id", res.ObjectID, "accession", r.accession.Token)
	w.metrics.ObserveIngest(res.Status, string(res.Stage))
	return res, nil
}

// ingestRun is the state of one Execute call
type ingestRun struct {
	*IngestWorkflow

	ctx    context.Context
	req    ingest.Request
	log    *slog.Logger
	result *WorkflowResult

	contentPath string
	checksum    string
	description *clients.Description
	accession   ingest.AccessionContext
}

func (r *ingestRun) enter(stage ingress.Stage) {
	r.result.Reached = append(r.result.Reached, stage)
}

func (r *ingestRun) run() error {
	if err := r.req.Validate(); err != nil {
		return &ingest.StageError{Stage: ingress.StageReceived, Err: err}
	}

	ws, err := r.workspaces.Acquire()
	if err != nil {
		return &ingest.StageError{Stage: ingress.StageReceived, Err: &ingest.IOError{Op: "acquire workspace", Err: err}}
	}
	defer func() {
		if err := ws.Release(); err != nil {
			r.log.Error("failed to release workspace", "dir", ws.Dir(), "error", err)
		}
	}()

	// Content is materialized once; every later stage reads the artifact.
	r.contentPath, err = ws.WriteArtifact(r.req.Content)
	if err != nil {
		return &ingest.StageError{Stage: ingress.StageReceived, Err: &ingest.IOError{Op: "save content", Err: err}}
	}
	r.log.Debug("content saved", "path", r.contentPath)

	steps := []struct {
		stage ingress.Stage
		fn    func(ctx context.Context) error
	}{
		{ingress.StageVerified, r.verify},
		{ingress.StageDescribed, func(ctx context.Context) error { return r.describe(ctx, ws) }},
		{ingress.StageStored, r.store},
		{ingress.StageAccessionResolved, r.resolve},
		{ingress.StageRegistered, r.register},
	}
	for _, s := range steps {
		if err := r.step(s.stage, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// step runs fn unless the request has been cancelled, timing it and tagging
// any failure with the stage.
func (r *ingestRun) step(stage ingress.Stage, fn func(ctx context.Context) error) error {
	if err := r.ctx.Err(); err != nil {
		return &ingest.StageError{Stage: stage, Err: err}
	}

	start := time.Now()
	err := fn(r.ctx)
	r.metrics.ObserveStage(string(stage), time.Since(start))
	if err != nil {
		return &ingest.StageError{Stage: stage, Err: err}
	}

	r.enter(stage)
	r.log.Debug("stage complete", "stage", stage, "duration", time.Since(start))
	return nil
}

func (r *ingestRun) verify(ctx context.Context) error {
	sum, err := r.stages.Verifier.Verify(ctx, r.contentPath, r.req.DeclaredChecksum)
	if err != nil {
		return err
	}
	r.checksum = sum
	return nil
}

func (r *ingestRun) describe(ctx context.Context, ws *workspace.Workspace) error {
	desc, err := r.stages.Describer.Describe(ctx, clients.DescribeRequest{
		ContentPath: r.contentPath,
		Checksum:    r.checksum,
		DisplayName: r.req.DisplayName,
		Workspace:   ws,
	})
	if err != nil {
		return err
	}
	r.description = desc
	r.result.ObjectID = desc.ObjectID
	return nil
}

func (r *ingestRun) store(ctx context.Context) error {
	ack, err := r.stages.Storer.Store(ctx, r.contentPath, r.description.RecordPath)
	if err != nil {
		return err
	}
	r.result.StorageAck = ack
	return nil
}

func (r *ingestRun) resolve(ctx context.Context) error {
	acc, err := r.stages.Resolver.Resolve(ctx, r.req.AccessionToken)
	if err != nil {
		return err
	}
	r.accession = acc
	r.result.AccessionAck.Mint = acc.MintAck
	if acc.Minted {
		r.log.Info("minted accession", "accession", acc.Token)
	}
	return nil
}

func (r *ingestRun) register(ctx context.Context) error {
	ack, err := r.stages.Registrar.AddMember(ctx, r.accession, r.description.ObjectID)
	if err != nil {
		return err
	}
	r.result.AccessionAck.MemberAddition = ack
	return nil
}
