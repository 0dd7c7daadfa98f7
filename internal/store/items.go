package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/releve/internal/dbopen"
)

// SeedItems inserts roster items that are not yet present, preserving the
// status of items a previous run already recorded. Fresh databases end up
// with every item pending; resumed databases only gain the rows the roster
// added since.
func (s *Store) SeedItems(ctx context.Context, items []SeedItem) error {
	now := time.Now().UnixMilli()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO items (label, display, seq, status, created_at, updated_at)
			VALUES (?, ?, ?, 'pending', ?, ?)
			ON CONFLICT(label) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, it := range items {
			if it.Label == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, it.Label, it.Display, i, now, now); err != nil {
				return fmt.Errorf("seed item %q: %w", it.Label, err)
			}
		}
		return nil
	})
}

// ResetInFlight returns crash leftovers to pending. A row can only be
// in_flight while a runner goroutine holds it; at startup none does.
func (s *Store) ResetInFlight(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE items SET status='pending', updated_at=? WHERE status='in_flight'`,
		time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetAll returns every item to pending with a clean slate, for fresh
// runs that re-scrape the whole roster.
func (s *Store) ResetAll(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE items SET status='pending', attempts=0, last_error='', updated_at=?
		WHERE status != 'pending'`,
		time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetForRetry returns the named items to pending so a replay pass picks
// them up again. Items already done are left alone.
func (s *Store) ResetForRetry(ctx context.Context, labels []string) (int64, error) {
	if len(labels) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(labels))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(labels)+1)
	args = append(args, time.Now().UnixMilli())
	for _, l := range labels {
		args = append(args, l)
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE items SET status='pending', updated_at=?
		WHERE label IN (`+placeholders+`) AND status != 'done'`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimItem moves an item to in_flight and counts the attempt. Returns
// false when the item is absent or already done, so a resumed run skips it
// without touching the browser. Claims race the event flusher for the
// write lock, hence the busy-retrying Exec.
func (s *Store) ClaimItem(ctx context.Context, label string) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB,
		`UPDATE items SET status='in_flight', attempts=attempts+1, updated_at=?
		WHERE label=? AND status IN ('pending','errored')`,
		time.Now().UnixMilli(), label)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkDone finishes an item. Idempotent.
func (s *Store) MarkDone(ctx context.Context, label string) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE items SET status='done', last_error='', updated_at=? WHERE label=?`,
		time.Now().UnixMilli(), label)
	return err
}

// MarkErrored records a failure. Done items never revert.
func (s *Store) MarkErrored(ctx context.Context, label, errMsg string) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE items SET status='errored', last_error=?, updated_at=?
		WHERE label=? AND status != 'done'`,
		errMsg, time.Now().UnixMilli(), label)
	return err
}

// GetItem retrieves an item by label, or nil when unknown.
func (s *Store) GetItem(ctx context.Context, label string) (*Item, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT label, display, seq, status, attempts, last_error, created_at, updated_at
		FROM items WHERE label = ?`, label)
	return scanItem(row)
}

// ListByStatus returns items in roster order filtered to one status.
func (s *Store) ListByStatus(ctx context.Context, status Status, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT label, display, seq, status, attempts, last_error, created_at, updated_at
		FROM items WHERE status = ? ORDER BY seq ASC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		it, err := scanItemRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CountByStatus returns the number of items per status plus the total.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, int, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM items GROUP BY status`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	total := 0
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, 0, err
		}
		counts[Status(st)] = n
		total += n
	}
	return counts, total, rows.Err()
}

func scanItem(row *sql.Row) (*Item, error) {
	var it Item
	var status string
	err := row.Scan(&it.Label, &it.Display, &it.Seq, &status, &it.Attempts,
		&it.LastError, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Status = Status(status)
	return &it, nil
}

func scanItemRows(rows *sql.Rows) (*Item, error) {
	var it Item
	var status string
	err := rows.Scan(&it.Label, &it.Display, &it.Seq, &status, &it.Attempts,
		&it.LastError, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Status = Status(status)
	return &it, nil
}
