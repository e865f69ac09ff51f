package ingress

import "encoding/json"

// Form field names accepted by the ingest endpoint
const (
	FieldMD5         = "md5"
	FieldName        = "name"
	FieldFile        = "file"
	FieldAccessionID = "accession_id"
)

// NewAccessionToken asks the service to mint a new accession for the upload
const NewAccessionToken = "new"

// Status values reported in IngestResponse
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Stage names the pipeline state an ingest request was trying to reach.
type Stage string

// Stage constants, in pipeline order
const (
	StageReceived          Stage = "received"
	StageVerified          Stage = "verified"
	StageDescribed         Stage = "described"
	StageStored            Stage = "stored"
	StageAccessionResolved Stage = "accession_resolved"
	StageRegistered        Stage = "registered"
	StageSucceeded         Stage = "succeeded"
)

// AccessionOutput holds the Accession Service responses for one ingest
type AccessionOutput struct {
	Mint           json.RawMessage `json:"mint,omitempty"`
	MemberAddition json.RawMessage `json:"member_addition,omitempty"`
}

// IngestResponse is the JSON body returned by the ingest endpoint.
// On failure Stage and Error are set, and IngestOutput is kept when the
// object was already stored before the failing stage.
type IngestResponse struct {
	Status       string           `json:"status"`
	RunID        string           `json:"run_id,omitempty"`
	Stage        Stage            `json:"stage,omitempty"`
	Error        string           `json:"error,omitempty"`
	ObjectID     string           `json:"object_id,omitempty"`
	IngestOutput json.RawMessage  `json:"ingest_output,omitempty"`
	AccOutput    *AccessionOutput `json:"acc_output,omitempty"`
}
