// Package checkpoint writes point-in-time copies of survey progress to
// durable storage without ever making the scrape loop wait on file I/O.
// One snapshot may be in flight at a time; triggers that arrive while one
// is running are refused with a typed sentinel instead of queueing, since
// the next periodic save supersedes them anyway.
package checkpoint

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSnapshotBusy is returned when a snapshot is already being written.
// Callers treat it as "progress is being saved right now", not a failure.
var ErrSnapshotBusy = errors.New("checkpoint: snapshot already in progress")

// Sink persists one snapshot. Implementations own the file formats.
type Sink interface {
	Persist(snap *Snapshot) error
}

// Persister serializes snapshot writes behind a compare-and-swap guard.
type Persister struct {
	sink   Sink
	logger *slog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup

	// OnPersist, when set, observes every completed write (err == nil on
	// success). Called from the writer goroutine.
	OnPersist func(err error, took time.Duration)

	mu   sync.Mutex
	last Outcome
}

// Outcome describes the most recent completed write, for status surfaces.
type Outcome struct {
	At    time.Time
	Took  time.Duration
	Error string
}

// New creates a Persister writing through sink.
func New(sink Sink, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{sink: sink, logger: logger}
}

// Trigger starts an asynchronous snapshot. copyFn runs synchronously on the
// caller's goroutine and must return a deep copy: once Trigger returns, the
// caller may mutate its live state freely. The durable write happens on a
// separate goroutine. Returns ErrSnapshotBusy when a write is in flight, in
// which case copyFn is never called.
func (p *Persister) Trigger(copyFn func() *Snapshot) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrSnapshotBusy
	}
	p.wg.Add(1)
	snap := copyFn()
	go func() {
		defer p.wg.Done()
		defer p.busy.Store(false)
		p.write(snap)
	}()
	return nil
}

// Flush writes a snapshot synchronously, waiting out any in-flight write
// first. The run finalizer calls this on every exit path so the last
// completed item is always on disk.
func (p *Persister) Flush(copyFn func() *Snapshot) error {
	for !p.busy.CompareAndSwap(false, true) {
		p.wg.Wait()
	}
	defer p.busy.Store(false)
	return p.write(copyFn())
}

// Wait blocks until no snapshot is in flight.
func (p *Persister) Wait() {
	p.wg.Wait()
}

// Last returns the most recent write outcome.
func (p *Persister) Last() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Persister) write(snap *Snapshot) error {
	start := time.Now()
	err := p.sink.Persist(snap)
	took := time.Since(start)

	out := Outcome{At: start, Took: took}
	if err != nil {
		out.Error = err.Error()
		p.logger.Error("checkpoint write failed", "error", err, "took", took)
	} else {
		p.logger.Info("checkpoint written", "took", took)
	}
	p.mu.Lock()
	p.last = out
	p.mu.Unlock()

	if p.OnPersist != nil {
		p.OnPersist(err, took)
	}
	return err
}
