// Package checksum streams uploaded content through an MD5 digest and
// compares it with the uploader's declared value.
package checksum

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/uchicago-library/ldr-ingress/internal/ingest"
)

// ChunkSize is the read size used while hashing
const ChunkSize = 64 * 1024

// Verifier computes content digests
type Verifier struct {
	newHash func() hash.Hash
}

// NewVerifier creates an MD5 verifier
func NewVerifier() *Verifier {
	return &Verifier{newHash: md5.New}
}

// Verify hashes the file at contentPath and compares the digest with declared.
// It returns the computed hex digest, or a *ingest.ChecksumMismatchError.
func (v *Verifier) Verify(ctx context.Context, contentPath, declared string) (string, error) {
	f, err := os.Open(contentPath)
	if err != nil {
		return "", &ingest.IOError{Op: "open content", Err: err}
	}
	defer f.Close()

	computed, err := v.Sum(ctx, f)
	if err != nil {
		return "", err
	}

	want := ingest.NormalizeChecksum(declared)
	if computed != want {
		return computed, &ingest.ChecksumMismatchError{Declared: want, Computed: computed}
	}
	return computed, nil
}

// Sum reads r to EOF in ChunkSize pieces and returns the lowercase hex digest.
// The context is checked between chunks.
func (v *Verifier) Sum(ctx context.Context, r io.Reader) (string, error) {
	h := v.newHash()
	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", &ingest.IOError{Op: "hash content", Err: err}
		}
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", &ingest.IOError{Op: "hash content", Err: fmt.Errorf("failed to read content: %w", err)}
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile returns the hex MD5 digest of the file at path
func SumFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return NewVerifier().Sum(ctx, f)
}
