// Package units holds the 1024-based size multipliers used for request and
// snapshot limits.
package units

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)
