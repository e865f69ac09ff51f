package checksum

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uchicago-library/ldr-ingress/internal/ingest"
)

const helloMD5 = "5d41402abc4b2a76b9719d911017c592"

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestVerify(t *testing.T) {
	v := NewVerifier()
	ctx := context.Background()

	t.Run("matching checksum", func(t *testing.T) {
		path := writeFile(t, []byte("hello"))
		computed, err := v.Verify(ctx, path, helloMD5)
		require.NoError(t, err)
		assert.Equal(t, helloMD5, computed)
	})

	t.Run("declared value is normalized", func(t *testing.T) {
		path := writeFile(t, []byte("hello"))
		_, err := v.Verify(ctx, path, "  "+strings.ToUpper(helloMD5)+"\n")
		assert.NoError(t, err)
	})

	t.Run("mismatch", func(t *testing.T) {
		path := writeFile(t, []byte("hello!"))
		computed, err := v.Verify(ctx, path, helloMD5)
		require.Error(t, err)

		var mismatch *ingest.ChecksumMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, helloMD5, mismatch.Declared)
		assert.Equal(t, computed, mismatch.Computed)
		assert.NotEqual(t, helloMD5, computed)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := v.Verify(ctx, filepath.Join(t.TempDir(), "absent"), helloMD5)
		var ioErr *ingest.IOError
		assert.True(t, errors.As(err, &ioErr))
	})

	t.Run("content larger than one chunk", func(t *testing.T) {
		data := []byte(strings.Repeat("a", 3*ChunkSize+17))
		path := writeFile(t, data)
		want, err := SumFile(ctx, path)
		require.NoError(t, err)

		computed, err := v.Verify(ctx, path, want)
		require.NoError(t, err)
		assert.Equal(t, want, computed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		path := writeFile(t, []byte("hello"))
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := v.Verify(cctx, path, helloMD5)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSumEmpty(t *testing.T) {
	sum, err := NewVerifier().Sum(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", sum)
}
