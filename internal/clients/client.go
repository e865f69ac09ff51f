// Package clients talks to the remote services an upload passes through:
// the PREMIS Description Service, the long-term Storage Service and the
// Accession Service.
package clients

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Service labels reported to a CallObserver
const (
	ServiceDescription = "description"
	ServiceStorage     = "storage"
	ServiceAccession   = "accession"
)

// Outcome labels reported to a CallObserver
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const (
	defaultTimeout = 5 * time.Minute
	maxErrorBody   = 1024
	maxReplyBytes  = 32 << 20
)

// CallObserver is notified once per remote call
type CallObserver interface {
	ObserveRemoteCall(service, outcome string)
}

// Option configures a client
type Option func(*base)

// WithHTTPClient sets the HTTP client used for remote calls
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		if c != nil {
			b.httpClient = c
		}
	}
}

// WithTimeout sets the per-call timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithObserver reports every remote call to obs
func WithObserver(obs CallObserver) Option {
	return func(b *base) {
		b.observer = obs
	}
}

// base holds what every service client shares
type base struct {
	endpoint   string
	httpClient *http.Client
	observer   CallObserver
}

func newBase(endpoint string, opts []Option) base {
	b := base{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) observe(service string, err error) {
	if b.observer == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	b.observer.ObserveRemoteCall(service, outcome)
}

// memberURL returns {endpoint}/{id}/
func (b *base) memberURL(id string) string {
	return fmt.Sprintf("%s/%s/", strings.TrimRight(b.endpoint, "/"), url.PathEscape(id))
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// readReply reads a bounded response body
func readReply(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxReplyBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxReplyBytes)
	}
	return body, nil
}

// errorBody returns a short excerpt of a failed response for error reports
func errorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(body))
}
