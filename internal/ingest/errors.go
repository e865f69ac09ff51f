package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

var (
	// ErrMalformedResponse is returned when a remote reply cannot be interpreted
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnresolvedAccession is returned when a member addition is attempted
	// against an accession that was never confirmed or minted
	ErrUnresolvedAccession = errors.New("accession not resolved")
)

// InputError reports missing or malformed request fields.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// ChecksumMismatchError means the uploaded bytes do not hash to the declared value.
type ChecksumMismatchError struct {
	Declared string
	Computed string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: declared %s, computed %s", e.Declared, e.Computed)
}

// IOError is a workspace or filesystem failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// DescriptionError is a failed call to the Description Service.
// StatusCode is zero when no HTTP response was received.
type DescriptionError struct {
	StatusCode int
	Body       string
	Malformed  bool
	Err        error
}

func (e *DescriptionError) Error() string {
	switch {
	case e.Malformed:
		return fmt.Sprintf("description service: malformed record: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("description service: status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("description service: %v", e.Err)
	}
}

func (e *DescriptionError) Unwrap() error { return e.Err }

// StorageError is a failed call to the Storage Service.
type StorageError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *StorageError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("storage service: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("storage service: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AccessionErrorKind classifies accession resolution failures
type AccessionErrorKind string

const (
	AccessionNotFound    AccessionErrorKind = "not_found"
	AccessionMintFailed  AccessionErrorKind = "mint_failed"
	AccessionProbeFailed AccessionErrorKind = "probe_failed"
)

// AccessionError is a failure to confirm or mint an accession.
type AccessionError struct {
	Kind       AccessionErrorKind
	Token      string
	StatusCode int
	Err        error
}

func (e *AccessionError) Error() string {
	msg := fmt.Sprintf("accession service: %s", e.Kind)
	if e.Token != "" {
		msg += fmt.Sprintf(" (accession %q)", e.Token)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *AccessionError) Unwrap() error { return e.Err }

// MembershipError is a failed member addition.
type MembershipError struct {
	Token      string
	StatusCode int
	Body       string
	Err        error
}

func (e *MembershipError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("accession service: add member to %q: status %d: %s", e.Token, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("accession service: add member to %q: %v", e.Token, e.Err)
}

func (e *MembershipError) Unwrap() error { return e.Err }

// StageError tags a failure with the pipeline stage it occurred in.
type StageError struct {
	Stage ingress.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage recorded on err, if any
func StageOf(err error) (ingress.Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// HTTPStatus maps a pipeline error to the status returned to the uploader.
func HTTPStatus(err error) int {
	var (
		inputErr    *InputError
		mismatchErr *ChecksumMismatchError
		accErr      *AccessionError
		ioErr       *IOError
		descErr     *DescriptionError
		storageErr  *StorageError
		memberErr   *MembershipError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &inputErr), errors.As(err, &mismatchErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &accErr) && accErr.Kind == AccessionNotFound:
		return http.StatusNotFound
	case errors.As(err, &ioErr):
		return http.StatusInternalServerError
	case errors.As(err, &descErr), errors.As(err, &storageErr),
		errors.As(err, &accErr), errors.As(err, &memberErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
