package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name  string
		stage ingress.Stage
		err   error
		want  int
	}{
		{"input", ingress.StageReceived, &InputError{Fields: map[string]string{ingress.FieldMD5: "required"}}, http.StatusBadRequest},
		{"workspace io", ingress.StageReceived, &IOError{Op: "save content", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{"checksum mismatch", ingress.StageVerified, &ChecksumMismatchError{Declared: "a", Computed: "b"}, http.StatusBadRequest},
		{"description", ingress.StageDescribed, &DescriptionError{StatusCode: http.StatusServiceUnavailable}, http.StatusBadGateway},
		{"description malformed", ingress.StageDescribed, &DescriptionError{Malformed: true, Err: ErrMalformedResponse}, http.StatusBadGateway},
		{"storage", ingress.StageStored, &StorageError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{"accession not found", ingress.StageAccessionResolved, &AccessionError{Kind: AccessionNotFound, Token: "missing-acc"}, http.StatusNotFound},
		{"accession probe failed", ingress.StageAccessionResolved, &AccessionError{Kind: AccessionProbeFailed, Token: "acc-9", StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{"accession mint failed", ingress.StageAccessionResolved, &AccessionError{Kind: AccessionMintFailed, Err: ErrMalformedResponse}, http.StatusBadGateway},
		{"membership", ingress.StageRegistered, &MembershipError{Token: "acc-9", StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{"deadline", ingress.StageStored, &StorageError{Err: fmt.Errorf("failed to post content: %w", context.DeadlineExceeded)}, http.StatusGatewayTimeout},
		{"unclassified", ingress.StageStored, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &StageError{Stage: tt.stage, Err: tt.err}
			assert.Equal(t, tt.want, HTTPStatus(err))

			stage, ok := StageOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.stage, stage)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	})
}
