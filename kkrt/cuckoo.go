//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package kkrt

import (
	"encoding/binary"
	"fmt"

	"github.com/markkurossi/mpsi/ot"
	"github.com/zeebo/blake3"
)

const (
	// NumHashes defines the number of cuckoo hash functions.
	NumHashes = 3

	// MaxEvictions defines how many evictions an insert can do
	// before the table is considered full.
	MaxEvictions = 500

	emptyBin = -1
)

// NumBins returns the number of cuckoo bins for n receiver
// elements. The count is a multiple of 64 so matrix columns fill
// whole bitset words.
func NumBins(n int) int {
	m := n + n/2 + 16
	return (m + 63) &^ 63
}

// Hasher implements the cuckoo hash functions.
type Hasher struct {
	key  [32]byte
	bins uint64
}

// NewHasher creates the hash functions for the key and bin count.
func NewHasher(key [32]byte, bins int) *Hasher {
	return &Hasher{
		key:  key,
		bins: uint64(bins),
	}
}

// Bin returns the bin index of the element for the hash function h.
func (hs *Hasher) Bin(h int, element ot.Label) int {
	var buf [1 + 16]byte
	buf[0] = byte(h)
	var data ot.LabelData
	copy(buf[1:], element.Bytes(&data))

	hasher, _ := blake3.NewKeyed(hs.key[:])
	hasher.Write(buf[:])
	var sum [8]byte
	hasher.Digest().Read(sum[:])

	return int(binary.BigEndian.Uint64(sum[:]) % hs.bins)
}

// Bin describes the contents of a cuckoo table bin.
type Bin struct {
	Item int
	Hash int
}

// Empty tests if the bin is empty.
func (b Bin) Empty() bool {
	return b.Item == emptyBin
}

// Table implements a stashless cuckoo hash table.
type Table struct {
	hasher *Hasher
	items  []ot.Label
	Bins   []Bin
}

// NewTable creates a cuckoo table with the bin count.
func NewTable(hasher *Hasher, bins int) *Table {
	t := &Table{
		hasher: hasher,
		Bins:   make([]Bin, bins),
	}
	for i := range t.Bins {
		t.Bins[i].Item = emptyBin
	}
	return t
}

// Item returns the element stored in the bin.
func (t *Table) Item(bin int) ot.Label {
	return t.items[t.Bins[bin].Item]
}

// Insert inserts the element into the table and returns its item
// index.
func (t *Table) Insert(element ot.Label) (int, error) {
	idx := len(t.items)
	t.items = append(t.items, element)

	cur := Bin{
		Item: idx,
		Hash: 0,
	}
	for i := 0; i < MaxEvictions; i++ {
		bin := t.hasher.Bin(cur.Hash, t.items[cur.Item])
		if t.Bins[bin].Empty() {
			t.Bins[bin] = cur
			return idx, nil
		}
		cur, t.Bins[bin] = t.Bins[bin], cur
		cur.Hash = (cur.Hash + 1) % NumHashes
	}
	return 0, fmt.Errorf("cuckoo insert failed after %d evictions",
		MaxEvictions)
}
