package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/uchicago-library/ldr-ingress/internal/ingest"
	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

// AccessionClient resolves accessions and registers their members
type AccessionClient struct {
	base
}

// NewAccessionClient creates a client for the Accession Service endpoint
func NewAccessionClient(endpoint string, opts ...Option) *AccessionClient {
	return &AccessionClient{base: newBase(endpoint, opts)}
}

// mintReply is the Accession Service's answer to a mint request
type mintReply struct {
	Minted []struct {
		Identifier string `json:"identifier"`
	} `json:"Minted"`
}

// Resolve confirms that token names an existing accession, or mints a new
// accession when token is ingress.NewAccessionToken. A missing accession is
// never replaced by a minted one.
func (c *AccessionClient) Resolve(ctx context.Context, token string) (ingest.AccessionContext, error) {
	var (
		acc ingest.AccessionContext
		err error
	)
	if token == ingress.NewAccessionToken {
		acc, err = c.mint(ctx)
	} else {
		acc, err = c.probe(ctx, token)
	}
	c.observe(ServiceAccession, err)
	return acc, err
}

func (c *AccessionClient) mint(ctx context.Context) (ingest.AccessionContext, error) {
	fail := func(status int, err error) (ingest.AccessionContext, error) {
		return ingest.AccessionContext{}, &ingest.AccessionError{
			Kind:       ingest.AccessionMintFailed,
			StatusCode: status,
			Err:        err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, nil)
	if err != nil {
		return fail(0, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, fmt.Errorf("failed to mint accession: %w", err))
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return fail(resp.StatusCode, fmt.Errorf("mint rejected: %s", errorBody(resp)))
	}

	reply, err := readReply(resp)
	if err != nil {
		return fail(0, err)
	}

	var minted mintReply
	if err := json.Unmarshal(reply, &minted); err != nil {
		return fail(0, fmt.Errorf("%w: %v", ingest.ErrMalformedResponse, err))
	}
	if len(minted.Minted) == 0 || strings.TrimSpace(minted.Minted[0].Identifier) == "" {
		return fail(0, fmt.Errorf("%w: no minted identifier", ingest.ErrMalformedResponse))
	}

	return ingest.AccessionContext{
		Token:   strings.TrimSpace(minted.Minted[0].Identifier),
		Minted:  true,
		MintAck: json.RawMessage(reply),
	}, nil
}

func (c *AccessionClient) probe(ctx context.Context, token string) (ingest.AccessionContext, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.memberURL(token), nil)
	if err != nil {
		return ingest.AccessionContext{}, &ingest.AccessionError{
			Kind:  ingest.AccessionProbeFailed,
			Token: token,
			Err:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ingest.AccessionContext{}, &ingest.AccessionError{
			Kind:  ingest.AccessionProbeFailed,
			Token: token,
			Err:   fmt.Errorf("failed to check accession: %w", err),
		}
	}
	resp.Body.Close()

	switch {
	case isSuccess(resp.StatusCode):
		return ingest.AccessionContext{Token: token}, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return ingest.AccessionContext{}, &ingest.AccessionError{
			Kind:       ingest.AccessionNotFound,
			Token:      token,
			StatusCode: resp.StatusCode,
		}
	default:
		return ingest.AccessionContext{}, &ingest.AccessionError{
			Kind:       ingest.AccessionProbeFailed,
			Token:      token,
			StatusCode: resp.StatusCode,
		}
	}
}

// AddMember registers objectID as a member of a resolved accession
func (c *AccessionClient) AddMember(ctx context.Context, acc ingest.AccessionContext, objectID string) (ingest.MembershipAck, error) {
	ack, err := c.addMember(ctx, acc, objectID)
	c.observe(ServiceAccession, err)
	return ack, err
}

func (c *AccessionClient) addMember(ctx context.Context, acc ingest.AccessionContext, objectID string) (ingest.MembershipAck, error) {
	if acc.Token == "" || acc.Token == ingress.NewAccessionToken {
		return nil, &ingest.MembershipError{Token: acc.Token, Err: ingest.ErrUnresolvedAccession}
	}

	form := url.Values{"member": {objectID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.memberURL(acc.Token), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ingest.MembershipError{Token: acc.Token, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ingest.MembershipError{Token: acc.Token, Err: fmt.Errorf("failed to add member: %w", err)}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &ingest.MembershipError{Token: acc.Token, StatusCode: resp.StatusCode, Body: errorBody(resp)}
	}

	reply, err := readReply(resp)
	if err != nil {
		return nil, &ingest.MembershipError{Token: acc.Token, Err: err}
	}
	if !json.Valid(reply) {
		return nil, &ingest.MembershipError{
			Token: acc.Token,
			Err:   fmt.Errorf("%w: reply is not JSON", ingest.ErrMalformedResponse),
		}
	}
	return ingest.MembershipAck(reply), nil
}
