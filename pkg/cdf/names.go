package cdf

import (
	"fmt"
	"hash/fnv"

	"github.com/relab/bbhash"
)

// NameIndex resolves probe set names to indices through a minimal perfect
// hash. Duplicate names resolve to their first occurrence.
type NameIndex struct {
	mph          *bbhash.BBHash2
	slots        []int32
	fingerprints []uint64
}

// BuildNameIndex hashes names, where names[i] is the name of probe set i.
// Empty names are not indexed.
func BuildNameIndex(names []string) (*NameIndex, error) {
	seen := make(map[uint64]struct{}, len(names))
	keys := make([]uint64, 0, len(names))
	first := make([]int32, 0, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		h := hashString(name)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		keys = append(keys, h)
		first = append(first, int32(i))
	}
	if len(keys) == 0 {
		return &NameIndex{}, nil
	}

	// gamma=2.0 trades a little space for faster construction
	mph, err := bbhash.New(keys, bbhash.Gamma(2.0))
	if err != nil {
		return nil, fmt.Errorf("build name hash: %w", err)
	}

	// BBHash returns 1-indexed values
	idx := &NameIndex{
		mph:          mph,
		slots:        make([]int32, len(keys)),
		fingerprints: make([]uint64, len(keys)),
	}
	for k, key := range keys {
		pos := mph.Find(key)
		if pos == 0 {
			return nil, fmt.Errorf("name hash lookup failed for %q", names[first[k]])
		}
		idx.slots[pos-1] = first[k]
		idx.fingerprints[pos-1] = computeFingerprint(names[first[k]])
	}
	return idx, nil
}

// Len returns the number of distinct names indexed.
func (x *NameIndex) Len() int {
	return len(x.slots)
}

// Lookup returns the probe set index for name.
func (x *NameIndex) Lookup(name string) (int, bool) {
	if x == nil || x.mph == nil || name == "" {
		return 0, false
	}
	pos := x.mph.Find(hashString(name))
	if pos == 0 || pos > uint64(len(x.slots)) {
		return 0, false
	}
	pos--
	if x.fingerprints[pos] != computeFingerprint(name) {
		return 0, false
	}
	return int(x.slots[pos]), true
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// computeFingerprint uses a second hash so a foreign key that lands on an
// occupied slot is rejected.
func computeFingerprint(s string) uint64 {
	h := fnv.New64()
	h.Write([]byte(s))
	return h.Sum64()
}
