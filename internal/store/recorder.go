package store

import (
	"context"
	"fmt"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
)

// DefaultFlushSize is the number of rounds buffered per transaction.
const DefaultFlushSize = 1000

// Recorder buffers rounds for one session and writes them in batches. It
// flushes synchronously on the caller's goroutine, so Append blocks while
// a batch is being written and a failed batch is reported to the caller.
type Recorder struct {
	store     *Store
	sessionID string
	buffer    []betting.RoundRecord
	flushSize int
	written   int
}

// NewRecorder creates a recorder for the given session.
func NewRecorder(store *Store, sessionID string, flushSize int) *Recorder {
	if flushSize <= 0 {
		flushSize = DefaultFlushSize
	}
	return &Recorder{
		store:     store,
		sessionID: sessionID,
		buffer:    make([]betting.RoundRecord, 0, flushSize),
		flushSize: flushSize,
	}
}

// SessionID returns the session the recorder writes to.
func (r *Recorder) SessionID() string { return r.sessionID }

// Append buffers rec and flushes when the buffer is full.
func (r *Recorder) Append(ctx context.Context, rec betting.RoundRecord) error {
	r.buffer = append(r.buffer, rec)
	if len(r.buffer) >= r.flushSize {
		return r.Flush(ctx)
	}
	return nil
}

// Flush writes every buffered round. On failure the buffer is kept so a
// later Flush can retry without losing rounds.
func (r *Recorder) Flush(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}
	if err := r.store.InsertRoundsBatch(ctx, r.sessionID, r.buffer); err != nil {
		return fmt.Errorf("store: flush %d rounds: %w", len(r.buffer), err)
	}
	r.written += len(r.buffer)
	r.buffer = r.buffer[:0]
	return nil
}

// Close flushes the tail of the buffer.
func (r *Recorder) Close(ctx context.Context) error {
	return r.Flush(ctx)
}

// Written returns the number of rounds persisted so far.
func (r *Recorder) Written() int { return r.written }
