package kgraph

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint hashes the (id, content length) pairs of nodes, sorted by id,
// so that rebuilding unchanged content yields the same value.
func Fingerprint(nodes []*Node) string {
	type entry struct {
		id     string
		length int
	}
	entries := make([]entry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, entry{n.ID, len(n.Content)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	d := xxhash.New()
	for _, e := range entries {
		_, _ = d.WriteString(e.id)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(strconv.Itoa(e.length))
		_, _ = d.WriteString("\x1e")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// ContentHash is the per-node content fingerprint used to validate cached
// embeddings.
func ContentHash(content string) string {
	sum := blake2b.Sum256([]byte(content))
	return hex.EncodeToString(sum[:16])
}

// DecodeRecords reads a JSON array of records.
func DecodeRecords(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return records, nil
}
