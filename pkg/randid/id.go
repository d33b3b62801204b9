// Package randid provides random ID generation utilities.
package randid

import (
	"math/rand/v2"
	"time"
)

const chars = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generate creates a random lowercase alphanumeric ID of the specified length.
func Generate(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = chars[rand.IntN(len(chars))]
	}
	return string(b)
}

// Run returns a run ID that starts with the UTC date of t, so IDs listed
// together read in roughly chronological order, e.g. "260301-k3x9a2".
func Run(t time.Time) string {
	return t.UTC().Format("060102") + "-" + Generate(6)
}
