// Package analysis contains the pure logic behind analysis caching:
// content hashing and the keyword-overlap similarity heuristic.
package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns a stable hex digest over a ticket's identity and text.
// Any edit to the title or description changes the hash, which is what
// invalidates cached analyses. Accumulated revision feedback is part of the
// input so a revised analysis never resolves to the rejected cache entry.
func ContentHash(ticketID, title, description string, feedback []string) string {
	var b strings.Builder
	b.WriteString(ticketID)
	b.WriteByte(0)
	b.WriteString(title)
	b.WriteByte(0)
	b.WriteString(description)
	for _, f := range feedback {
		b.WriteByte(0)
		b.WriteString(f)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// CacheKey combines ticket id and content hash into the cache's primary key.
func CacheKey(ticketID, contentHash string) string {
	return ticketID + "_" + contentHash
}
