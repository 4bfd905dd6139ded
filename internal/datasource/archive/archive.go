// Package archive turns an uploaded ZIP into a workspace on disk: the archive
// is spooled to a fresh temporary directory, its entries are extracted under
// guards against path traversal and decompression bombs, and the extracted
// text files are paired into (data, layout) tables.
//
// The workspace owns everything it wrote; Close removes it.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"layoutsync/internal/datasource"
)

// ErrArchive is wrapped by every error caused by the archive's content, as
// opposed to local I/O failures.
var ErrArchive = errors.New("invalid archive")

// Defaults for Options.
const (
	DefaultMaxFiles      = 1000
	DefaultMaxEntryBytes = 4 << 30
	DefaultMaxTotalBytes = 16 << 30
)

// Options bounds an extraction. Zero values select the defaults.
type Options struct {
	MaxFiles      int
	MaxEntryBytes int64
	MaxTotalBytes int64
	// TempDir is the parent of the workspace; empty means os.TempDir().
	TempDir string
	Logger  *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	if o.MaxEntryBytes <= 0 {
		o.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if o.MaxTotalBytes <= 0 {
		o.MaxTotalBytes = DefaultMaxTotalBytes
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Workspace is an extracted archive.
type Workspace struct {
	// Dir holds the extracted entries.
	Dir string
	// Files lists extracted regular files, slash separated and relative to
	// Dir, in archive order.
	Files []string

	root   string
	logger *zap.Logger
}

// Close removes the workspace. It is safe to call more than once.
func (w *Workspace) Close() error {
	if w == nil || w.root == "" {
		return nil
	}
	root := w.root
	w.root = ""
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("remove workspace %s: %w", root, err)
	}
	w.logger.Debug("workspace removed", zap.String("dir", root))
	return nil
}

// Extract spools src into a new workspace and extracts it. On error nothing
// is left on disk.
func Extract(ctx context.Context, src datasource.Source, opts Options) (_ *Workspace, err error) {
	opts = opts.withDefaults()

	root, err := os.MkdirTemp(opts.TempDir, "layoutsync-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws := &Workspace{Dir: filepath.Join(root, "files"), root: root, logger: opts.Logger}
	defer func() {
		if err != nil {
			_ = ws.Close()
		}
	}()

	zipPath := filepath.Join(root, "upload.zip")
	if err := spool(ctx, src, zipPath); err != nil {
		return nil, err
	}
	if err := os.Mkdir(ws.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		if zr != nil {
			_ = zr.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrArchive, err)
	}
	defer zr.Close()

	var total int64
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, skip, err := entryName(f)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		if len(ws.Files) >= opts.MaxFiles {
			return nil, fmt.Errorf("%w: more than %d files", ErrArchive, opts.MaxFiles)
		}
		n, err := extractEntry(f, filepath.Join(ws.Dir, filepath.FromSlash(name)), opts.MaxEntryBytes)
		if err != nil {
			return nil, err
		}
		total += n
		if total > opts.MaxTotalBytes {
			return nil, fmt.Errorf("%w: uncompressed size exceeds %d bytes", ErrArchive, opts.MaxTotalBytes)
		}
		ws.Files = append(ws.Files, name)
	}

	if len(ws.Files) == 0 {
		return nil, fmt.Errorf("%w: archive contains no files", ErrArchive)
	}
	opts.Logger.Info("archive extracted",
		zap.String("dir", ws.Dir),
		zap.Int("files", len(ws.Files)),
		zap.Int64("bytes", total),
	)
	return ws, nil
}

func spool(ctx context.Context, src datasource.Source, dst string) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("spool upload: %w", err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("spool upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("spool upload: %w", err)
	}
	return nil
}

// entryName validates an entry path. Directories and OS metadata entries
// (__MACOSX/, ._ resource forks) are skipped.
func entryName(f *zip.File) (name string, skip bool, err error) {
	name = strings.ReplaceAll(f.Name, `\`, "/")
	if f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
		return "", true, nil
	}
	if !f.Mode().IsRegular() {
		return "", false, fmt.Errorf("%w: %s is not a regular file", ErrArchive, f.Name)
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", false, fmt.Errorf("%w: unsafe path %q", ErrArchive, f.Name)
	}
	name = path.Clean(name)
	if strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._") {
		return "", true, nil
	}
	return name, false, nil
}

func extractEntry(f *zip.File, dst string, limit int64) (int64, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return 0, fmt.Errorf("%w: %s exceeds %d bytes", ErrArchive, f.Name, limit)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return 0, fmt.Errorf("extract %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrArchive, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", f.Name, err)
	}
	// The header size is not trusted: copy at most limit+1 bytes.
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("%w: %s: %v", ErrArchive, f.Name, err)
	}
	if n > limit {
		return n, fmt.Errorf("%w: %s exceeds %d bytes", ErrArchive, f.Name, limit)
	}
	return n, nil
}
