// Package ingest holds the request, result and error types shared by the
// ingestion pipeline stages.
package ingest

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

// Request is one upload to drive through the pipeline.
// Content is read exactly once.
type Request struct {
	DeclaredChecksum string
	DisplayName      string
	Content          io.Reader
	AccessionToken   string
}

// NormalizeChecksum returns the canonical lowercase hex form of a checksum
func NormalizeChecksum(sum string) string {
	return strings.ToLower(strings.TrimSpace(sum))
}

// Validate checks the required request fields
func (r *Request) Validate() error {
	fields := make(map[string]string)

	sum := NormalizeChecksum(r.DeclaredChecksum)
	if sum == "" {
		fields[ingress.FieldMD5] = "md5 is required"
	} else if _, err := hex.DecodeString(sum); err != nil || len(sum) != 32 {
		fields[ingress.FieldMD5] = "md5 must be 32 hex characters"
	}
	if r.Content == nil {
		fields[ingress.FieldFile] = "file is required"
	}
	if strings.TrimSpace(r.AccessionToken) == "" {
		fields[ingress.FieldAccessionID] = "accession_id is required"
	}

	if len(fields) > 0 {
		return &InputError{Fields: fields}
	}
	return nil
}

// AccessionContext is an accession the Accession Service has confirmed or minted.
type AccessionContext struct {
	Token   string
	Minted  bool
	MintAck json.RawMessage
}

// StorageAck is the Storage Service's JSON acknowledgment
type StorageAck = json.RawMessage

// MembershipAck is the Accession Service's JSON reply to a member addition
type MembershipAck = json.RawMessage

// Result is the outcome of one ingest.
type Result struct {
	Status       string
	Stage        ingress.Stage
	Err          error
	ObjectID     string
	StorageAck   StorageAck
	AccessionAck ingress.AccessionOutput
}

// Succeeded reports whether every stage completed
func (r *Result) Succeeded() bool {
	return r.Status == ingress.StatusSuccess
}

// StoredUnlinked reports a failure after the durability commit: the object
// is held by the Storage Service but is not a member of any accession.
func (r *Result) StoredUnlinked() bool {
	return !r.Succeeded() && r.StorageAck != nil
}

// Response renders the result in the endpoint's JSON shape
func (r *Result) Response(runID string) ingress.IngestResponse {
	resp := ingress.IngestResponse{
		Status:       r.Status,
		RunID:        runID,
		ObjectID:     r.ObjectID,
		IngestOutput: r.StorageAck,
	}
	if r.Succeeded() {
		acc := r.AccessionAck
		resp.AccOutput = &acc
		return resp
	}

	resp.Stage = r.Stage
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	if r.AccessionAck.Mint != nil || r.AccessionAck.MemberAddition != nil {
		acc := r.AccessionAck
		resp.AccOutput = &acc
	}
	return resp
}
