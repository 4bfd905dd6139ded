// Package datasource abstracts where an upload bundle comes from: a local
// path, a remote URL or a stream already in hand (a multipart part).
package datasource

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Source opens the bytes of one bundle. The caller closes the reader.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ErrConsumed is returned when a Stream is opened a second time.
var ErrConsumed = errors.New("datasource: stream already consumed")

// Stream is a Source over a reader the caller already holds. It can be opened
// once.
type Stream struct {
	mu sync.Mutex
	rc io.ReadCloser
}

// FromReader wraps r. If r is not an io.Closer, closing is a no-op.
func FromReader(r io.Reader) *Stream {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return &Stream{rc: rc}
}

func (s *Stream) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rc == nil {
		return nil, ErrConsumed
	}
	rc := s.rc
	s.rc = nil
	return rc, nil
}
