package store

// Status is an item's position in its lifecycle. Transitions only move
// forward: done is terminal, errored items may re-enter in_flight on a
// retry pass, and in_flight rows found at startup are crash leftovers.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in_flight"
	StatusDone     Status = "done"
	StatusErrored  Status = "errored"
)

// Item is one roster entry and its scrape state.
type Item struct {
	Label     string `json:"label"`   // normalized label, primary key
	Display   string `json:"display"` // label as written in the roster
	Seq       int    `json:"seq"`     // roster position, drives processing order in listings
	Status    Status `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// SeedItem is the roster-side view of an item used when seeding.
type SeedItem struct {
	Label   string
	Display string
}

// Result is the extracted outcome for one item against one source.
// Re-scraping the same pair overwrites the row.
type Result struct {
	Label        string  `json:"label"`
	Source       string  `json:"source"`
	DateText     string  `json:"date_text,omitempty"`
	PriceLow     float64 `json:"price_low,omitempty"`
	PriceHigh    float64 `json:"price_high,omitempty"`
	PriceRef     float64 `json:"price_ref,omitempty"`
	Confidence   string  `json:"confidence"`
	URL          string  `json:"url,omitempty"`
	Availability string  `json:"availability"`
	SearchURL    string  `json:"search_url,omitempty"`
	UpdatedAt    int64   `json:"updated_at"`
}

// Summary aggregates run progress for status surfaces.
type Summary struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	InFlight int `json:"in_flight"`
	Done     int `json:"done"`
	Errored  int `json:"errored"`

	Found          int `json:"found"`
	PartiallyFound int `json:"partially_found"`
	NotFound       int `json:"not_found"`
}
