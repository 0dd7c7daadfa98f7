package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/releve/internal/dbopen"
)

// Event is one diagnostic record: an item outcome, an item failure, a
// checkpoint write.
type Event struct {
	RunID    string `json:"run_id"`
	Level    string `json:"level"` // "info", "warn", "error"
	Kind     string `json:"kind"`  // "item_done", "item_error", "checkpoint"
	Label    string `json:"label,omitempty"`
	Message  string `json:"message"`
	LoggedAt int64  `json:"logged_at"`
}

// EventRecorder persists events asynchronously. Record never blocks the
// caller: when the buffer is full the event is dropped and counted, because
// a stalled event writer must not stall scraping.
type EventRecorder struct {
	db      *sql.DB
	runID   string
	ch      chan *Event
	stop    chan struct{}
	done    chan struct{}
	dropped atomic.Int64
}

// NewEventRecorder starts the flush goroutine. Recommended bufferSize: 256.
func NewEventRecorder(db *sql.DB, runID string, bufferSize int) *EventRecorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	r := &EventRecorder{
		db:    db,
		runID: runID,
		ch:    make(chan *Event, bufferSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go r.flushLoop()
	return r
}

// Record queues an event for persistence. Never blocks.
func (r *EventRecorder) Record(level, kind, label, message string) {
	e := &Event{
		RunID:    r.runID,
		Level:    level,
		Kind:     kind,
		Label:    label,
		Message:  message,
		LoggedAt: time.Now().UnixMilli(),
	}
	select {
	case r.ch <- e:
	default:
		if r.dropped.Add(1) == 1 {
			slog.Warn("event buffer full, dropping", "kind", kind)
		}
	}
}

// Dropped reports how many events were discarded on a full buffer.
func (r *EventRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains the buffer and stops the flush goroutine.
func (r *EventRecorder) Close() error {
	close(r.stop)
	<-r.done
	return nil
}

func (r *EventRecorder) flushLoop() {
	defer close(r.done)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	batch := make([]*Event, 0, 64)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := dbopen.RunTx(ctx, r.db, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO events
				(run_id, level, kind, label, message, logged_at)
				VALUES (?,?,?,?,?,?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, e := range batch {
				if _, err := stmt.ExecContext(ctx,
					e.RunID, e.Level, e.Kind, e.Label, e.Message, e.LoggedAt); err != nil {
					return fmt.Errorf("insert %s: %w", e.Kind, err)
				}
			}
			return nil
		})
		if err != nil {
			slog.Error("event flush", "error", err, "events", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-r.stop:
			for {
				select {
				case e := <-r.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-r.ch:
			batch = append(batch, e)
			if len(batch) >= 64 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// RecentEvents returns the newest events, optionally filtered to one item.
func (s *Store) RecentEvents(ctx context.Context, label string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT run_id, level, kind, label, message, logged_at FROM events`
	var args []any
	if label != "" {
		q += ` WHERE label = ?`
		args = append(args, label)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.RunID, &e.Level, &e.Kind, &e.Label, &e.Message, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
