package extract

import (
	"context"
	"sync"
	"sync/atomic"

	"tributary/internal/models"
)

// Stream is a lazily produced record sequence. The producer goroutine pushes
// records through the channel until the source is drained, the context is
// cancelled, or an upstream error occurs; the consumer ranges over Records and
// checks Err once the channel closes. Yielded and Skipped stay readable during
// production so progress can be reported while extraction runs.
type Stream struct {
	records chan models.RawRecord

	yielded atomic.Int64
	skipped atomic.Int64

	mu  sync.Mutex
	err error
}

// NewStream returns an open stream with the given channel buffer. The caller
// becomes the producer and must end the stream with Finish.
func NewStream(buffer int) *Stream {
	return &Stream{records: make(chan models.RawRecord, buffer)}
}

// Records returns the record channel. It is closed when production ends for
// any reason.
func (s *Stream) Records() <-chan models.RawRecord {
	return s.records
}

// Err returns the production error, if any. Only meaningful after Records has
// been drained. A cancelled stream reports the context error.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Yielded returns how many records have been emitted so far.
func (s *Stream) Yielded() int {
	return int(s.yielded.Load())
}

// Skipped returns how many malformed records were dropped so far. Skips never
// fail the stream.
func (s *Stream) Skipped() int {
	return int(s.skipped.Load())
}

// Emit delivers one record, giving up promptly when the consumer has gone
// away. Returns false if the context was cancelled.
func (s *Stream) Emit(ctx context.Context, rec models.RawRecord) bool {
	select {
	case s.records <- rec:
		s.yielded.Add(1)
		return true
	case <-ctx.Done():
		return false
	}
}

// Skip counts one dropped malformed record.
func (s *Stream) Skip() {
	s.skipped.Add(1)
}

// Finish closes the stream, recording the terminal error (nil for a clean
// drain). Must be called exactly once, by the producer.
func (s *Stream) Finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.records)
}
