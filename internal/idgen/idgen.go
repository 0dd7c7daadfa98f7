// Package idgen provides the ID strategies used across a survey run:
// time-sortable run IDs for the ledger, and short timestamped names for
// diagnostic capture files.
package idgen

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers. Components accept a
// Generator so the naming strategy is a startup-time decision.
type Generator func() string

// NanoID returns a Generator producing base-36 IDs of the given length.
// Short and filesystem-safe; used as the unique suffix of capture names.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		out := make([]byte, length)
		for i := range out {
			out[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(out)
	}
}

// Timestamped wraps a Generator so every ID starts with a UTC timestamp,
// "20060102T150405Z_<suffix>". Lexical order equals chronological order,
// which keeps capture directories and bundled reports readable.
func Timestamped(gen Generator) Generator {
	return func() string {
		return time.Now().UTC().Format("20060102T150405Z") + "_" + gen()
	}
}

// Prefixed prepends a fixed prefix, for type-scoped IDs ("run_", "snap_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings,
// time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// NewRunID produces the identifier recorded with every run's ledger rows.
func NewRunID() string {
	return Prefixed("run_", UUIDv7())()
}

// NewCaptureID produces the unique part of a diagnostic capture filename.
func NewCaptureID() string {
	return Timestamped(NanoID(5))()
}
