package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/releve/internal/dbopen"
)

// UpsertResult writes the extracted outcome for one item×source pair,
// replacing whatever a previous attempt stored. Re-scrapes therefore
// converge on the latest observation instead of accumulating rows.
func (s *Store) UpsertResult(ctx context.Context, r *Result) error {
	r.UpdatedAt = time.Now().UnixMilli()
	if r.Confidence == "" {
		r.Confidence = "not_found"
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO results (label, source, date_text, price_low, price_high, price_ref,
		confidence, url, availability, search_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(label, source) DO UPDATE SET
			date_text=excluded.date_text,
			price_low=excluded.price_low,
			price_high=excluded.price_high,
			price_ref=excluded.price_ref,
			confidence=excluded.confidence,
			url=excluded.url,
			availability=excluded.availability,
			search_url=excluded.search_url,
			updated_at=excluded.updated_at`,
		r.Label, r.Source, r.DateText, r.PriceLow, r.PriceHigh, r.PriceRef,
		r.Confidence, r.URL, r.Availability, r.SearchURL, r.UpdatedAt)
	return err
}

// GetResult retrieves the stored outcome for one item×source pair, or nil.
func (s *Store) GetResult(ctx context.Context, label, source string) (*Result, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT label, source, date_text, price_low, price_high, price_ref,
		confidence, url, availability, search_url, updated_at
		FROM results WHERE label = ? AND source = ?`, label, source)
	return scanResult(row)
}

// ListResults returns all outcomes for one source in roster order.
func (s *Store) ListResults(ctx context.Context, source string) ([]*Result, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT r.label, r.source, r.date_text, r.price_low, r.price_high, r.price_ref,
		r.confidence, r.url, r.availability, r.search_url, r.updated_at
		FROM results r JOIN items i ON i.label = r.label
		WHERE r.source = ? ORDER BY i.seq ASC`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		r, err := scanResultRows(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Summarize reports progress counts for status surfaces and run-end logs.
func (s *Store) Summarize(ctx context.Context, source string) (*Summary, error) {
	counts, total, err := s.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		Total:    total,
		Pending:  counts[StatusPending],
		InFlight: counts[StatusInFlight],
		Done:     counts[StatusDone],
		Errored:  counts[StatusErrored],
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT confidence, COUNT(*) FROM results WHERE source = ? GROUP BY confidence`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var conf string
		var n int
		if err := rows.Scan(&conf, &n); err != nil {
			return nil, err
		}
		switch conf {
		case "found":
			sum.Found = n
		case "partially_found":
			sum.PartiallyFound = n
		case "not_found":
			sum.NotFound = n
		}
	}
	return sum, rows.Err()
}

func scanResult(row *sql.Row) (*Result, error) {
	var r Result
	err := row.Scan(&r.Label, &r.Source, &r.DateText, &r.PriceLow, &r.PriceHigh,
		&r.PriceRef, &r.Confidence, &r.URL, &r.Availability, &r.SearchURL, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	return &r, nil
}

func scanResultRows(rows *sql.Rows) (*Result, error) {
	var r Result
	err := rows.Scan(&r.Label, &r.Source, &r.DateText, &r.PriceLow, &r.PriceHigh,
		&r.PriceRef, &r.Confidence, &r.URL, &r.Availability, &r.SearchURL, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}
	return &r, nil
}
