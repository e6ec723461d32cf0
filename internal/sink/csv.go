package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
)

// DefaultCSVBuffer is the channel capacity used when none is given.
const DefaultCSVBuffer = 4096

// CSV writes records from a background goroutine. Append blocks while the
// channel is full, so the producer can never outrun the disk by more than
// the buffer.
type CSV struct {
	ch     chan betting.RoundRecord
	done   chan struct{}
	w      *csv.Writer
	closer io.Closer

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error

	once     sync.Once
	closeErr error
	written  int64
}

// NewCSV starts a writer goroutine over w. The header is written first.
func NewCSV(w io.Writer, buffer int) *CSV {
	if buffer <= 0 {
		buffer = DefaultCSVBuffer
	}
	c := &CSV{
		ch:   make(chan betting.RoundRecord, buffer),
		done: make(chan struct{}),
		w:    csv.NewWriter(w),
	}
	go c.run()
	return c
}

// CreateCSV creates (truncating) the file at path and owns it.
func CreateCSV(path string, buffer int) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: create csv: %w", err)
	}
	c := NewCSV(f, buffer)
	c.closer = f
	return c, nil
}

func (c *CSV) run() {
	defer close(c.done)
	if err := c.w.Write(Header); err != nil {
		c.setErr(err)
	}
	for rec := range c.ch {
		if c.failed() {
			continue
		}
		if err := c.w.Write(Row(rec)); err != nil {
			c.setErr(err)
			continue
		}
		c.written++
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.setErr(err)
	}
}

// Append queues rec. It blocks while the buffer is full and returns
// ctx.Err() if ctx ends first. A previous write error is returned as soon
// as it is known.
func (c *CSV) Append(ctx context.Context, rec betting.RoundRecord) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrSinkClosed
	}
	if err := c.firstErr(); err != nil {
		return fmt.Errorf("sink: csv write: %w", err)
	}
	select {
	case c.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, flushes, closes an owned file and returns the
// first error seen. Further calls return the same result.
func (c *CSV) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.ch)
		c.mu.Unlock()
		<-c.done

		err := c.firstErr()
		if c.closer != nil {
			if cerr := c.closer.Close(); err == nil {
				err = cerr
			}
		}
		if err != nil {
			c.closeErr = fmt.Errorf("sink: csv close: %w", err)
		}
	})
	return c.closeErr
}

// Written returns the number of rows written. Only valid after Close.
func (c *CSV) Written() int64 { return c.written }

func (c *CSV) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

func (c *CSV) firstErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *CSV) failed() bool { return c.firstErr() != nil }
