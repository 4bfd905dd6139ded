package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocalOpen covers success, missing file, directory and a canceled context.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	writeBundle := func(t *testing.T) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "bundle.zip")
		require.NoError(t, os.WriteFile(p, []byte("PK\x03\x04"), 0o644))
		return p
	}

	cases := []struct {
		name        string
		prepare     func(t *testing.T) string
		cancel      bool
		wantErrIs   error
		wantErrText string
		wantContent string
	}{
		{
			name:        "reads content",
			prepare:     writeBundle,
			wantContent: "PK\x03\x04",
		},
		{
			name:        "missing file wraps not-exist",
			prepare:     func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.zip") },
			wantErrIs:   os.ErrNotExist,
			wantErrText: "open ",
		},
		{
			name:        "directory rejected",
			prepare:     func(t *testing.T) string { return t.TempDir() },
			wantErrText: "not a regular file",
		},
		{
			name:      "canceled context short circuits",
			prepare:   writeBundle,
			cancel:    true,
			wantErrIs: context.Canceled,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if c.cancel {
				cancel()
			}

			src := NewLocal(c.prepare(t))
			rc, err := src.Open(ctx)
			if c.wantErrIs != nil || c.wantErrText != "" {
				require.Error(t, err)
				if c.wantErrIs != nil {
					assert.ErrorIs(t, err, c.wantErrIs)
				}
				if c.wantErrText != "" {
					assert.Contains(t, err.Error(), c.wantErrText)
				}
				return
			}
			require.NoError(t, err)
			defer rc.Close()

			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, c.wantContent, string(got))
		})
	}
}

func BenchmarkLocalOpen(b *testing.B) {
	p := filepath.Join(b.TempDir(), "bundle.zip")
	if err := os.WriteFile(p, []byte("payload"), 0o644); err != nil {
		b.Fatalf("write test file: %v", err)
	}
	src := NewLocal(p)
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rc, err := src.Open(ctx)
		if err != nil {
			b.Fatal(err)
		}
		if err := rc.Close(); err != nil {
			b.Fatal(err)
		}
	}
}
