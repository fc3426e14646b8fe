// Package simhash fingerprints pages of records. The fingerprint ignores
// record order, so a page served again in a different order hashes the
// same.
package simhash

import (
	"hash/fnv"

	"github.com/use-agent/namecrawl/models"
)

// Fingerprint computes a 64-bit SimHash over tokens. Each token is hashed
// with FNV-64a and votes on every bit; the majority wins.
func Fingerprint(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()

		for i := range 64 {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := range 64 {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Records fingerprints a page of records. Every record is one token, so
// reordering fields inside a record changes the result but reordering
// whole records does not.
func Records(rows []models.Record) uint64 {
	tokens := make([]string, len(rows))
	for i, r := range rows {
		tokens[i] = r.Key()
	}
	return Fingerprint(tokens)
}
