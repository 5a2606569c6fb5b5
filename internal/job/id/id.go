// Package id provides unique identifier generation for alignment jobs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique job ID.
// Format: aln-<timestamp>-<random>
// Example: aln-1701432000-a1b2c3d4e5f6
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		// Fallback to timestamp only if crypto/rand fails
		return fmt.Sprintf("aln-%d", timestamp)
	}
	return fmt.Sprintf("aln-%d-%s", timestamp, hex.EncodeToString(random))
}
