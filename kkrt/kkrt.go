//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package kkrt implements the KKRT batched oblivious PRF private set
// intersection protocol.
//  - https://eprint.iacr.org/2016/799.pdf
//
// The receiver places its elements into a cuckoo table and runs an
// OT extension with the sender where the sender's base OT choice
// vector acts as the OPRF key. The sender evaluates the OPRF on its
// elements for every cuckoo hash function and sends the shuffled
// outputs to the receiver which compares them with its own outputs.
package kkrt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/ot"
	"github.com/markkurossi/mpsi/task"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20"
)

const (
	// CodeWidth defines the pseudorandom code width in bits. It is
	// also the number of base OTs.
	CodeWidth = 512

	codeBytes = CodeWidth / 8
	dummyHash = NumHashes
	outputCtx = "github.com/markkurossi/mpsi/kkrt oprf output"
	minEncLen = 8
	maxEncLen = 32
	keyLen    = 32
)

// PSI implements the KKRT PSI protocol for one party.
type PSI struct {
	config       *env.Config
	role         task.Role
	io           ot.IO
	senderSize   int
	receiverSize int
	encLen       int
	bins         int

	// Receiver base OT seed pairs.
	seeds []ot.Wire

	// Sender base OT choices and the chosen seeds.
	choices     *bitset.BitSet
	choiceBytes []byte
	chosen      []ot.Label

	codeKey [keyLen]byte
	hashKey [keyLen]byte

	positions []int
}

// New creates a new KKRT PSI instance.
func New(config *env.Config) *PSI {
	return &PSI{
		config: config,
	}
}

// EncodingLength returns the OPRF output length in bytes for the set
// sizes and the statistical security parameter.
func EncodingLength(senderSize, receiverSize, statSecParam int) int {
	l := statSecParam + bits.Len(uint(senderSize)) +
		bits.Len(uint(receiverSize))
	l = (l + 7) / 8
	if l < minEncLen {
		l = minEncLen
	}
	if l > maxEncLen {
		l = maxEncLen
	}
	return l
}

// Init runs the protocol setup. The client is the PSI receiver and
// the server the PSI sender.
func (psi *PSI) Init(role task.Role, io ot.IO, senderSize, receiverSize,
	statSecParam int) error {

	if senderSize < 0 || receiverSize < 0 {
		return fmt.Errorf("invalid set sizes: sender=%d, receiver=%d",
			senderSize, receiverSize)
	}
	psi.role = role
	psi.io = io
	psi.senderSize = senderSize
	psi.receiverSize = receiverSize
	psi.encLen = EncodingLength(senderSize, receiverSize, statSecParam)
	psi.bins = NumBins(receiverSize)
	psi.positions = nil

	co := ot.NewCO(psi.config.GetRandom())

	if role == task.RoleClient {
		return psi.initReceiver(co)
	}
	return psi.initSender(co)
}

func (psi *PSI) initReceiver(co ot.OT) error {
	rand := psi.config.GetRandom()

	psi.seeds = make([]ot.Wire, CodeWidth)
	for i := range psi.seeds {
		var err error
		psi.seeds[i].L0, err = ot.NewLabel(rand)
		if err != nil {
			return err
		}
		psi.seeds[i].L1, err = ot.NewLabel(rand)
		if err != nil {
			return err
		}
	}
	if err := co.InitSender(psi.io); err != nil {
		return fmt.Errorf("base OT init: %w", err)
	}
	if err := co.Send(psi.seeds); err != nil {
		return fmt.Errorf("base OT: %w", err)
	}

	codeKey, err := ot.ReceiveFixed(psi.io, keyLen)
	if err != nil {
		return err
	}
	copy(psi.codeKey[:], codeKey)
	hashKey, err := ot.ReceiveFixed(psi.io, keyLen)
	if err != nil {
		return err
	}
	copy(psi.hashKey[:], hashKey)

	return nil
}

func (psi *PSI) initSender(co ot.OT) error {
	rand := psi.config.GetRandom()

	psi.choiceBytes = make([]byte, codeBytes)
	if _, err := io.ReadFull(rand, psi.choiceBytes); err != nil {
		return err
	}
	psi.choices = bitset.New(CodeWidth)
	flags := make([]bool, CodeWidth)
	for i := range flags {
		if bit(psi.choiceBytes, i) {
			flags[i] = true
			psi.choices.Set(uint(i))
		}
	}

	psi.chosen = make([]ot.Label, CodeWidth)
	if err := co.InitReceiver(psi.io); err != nil {
		return fmt.Errorf("base OT init: %w", err)
	}
	if err := co.Receive(flags, psi.chosen); err != nil {
		return fmt.Errorf("base OT: %w", err)
	}

	if _, err := io.ReadFull(rand, psi.codeKey[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(rand, psi.hashKey[:]); err != nil {
		return err
	}
	if err := psi.io.SendData(psi.codeKey[:]); err != nil {
		return err
	}
	if err := psi.io.SendData(psi.hashKey[:]); err != nil {
		return err
	}
	return psi.io.Flush()
}

// SendInput runs the OPRF and the output comparison for the input
// elements. The element count must not exceed the set size given
// for this party in Init.
func (psi *PSI) SendInput(inputs []ot.Label) error {
	if psi.io == nil {
		return fmt.Errorf("kkrt: not initialized")
	}
	if psi.role == task.RoleClient {
		if len(inputs) > psi.receiverSize {
			return fmt.Errorf("too many inputs: %d > %d",
				len(inputs), psi.receiverSize)
		}
		return psi.receive(inputs)
	}
	if len(inputs) > psi.senderSize {
		return fmt.Errorf("too many inputs: %d > %d",
			len(inputs), psi.senderSize)
	}
	return psi.send(inputs)
}

// Intersection returns the ascending receiver input positions of the
// elements that are in the sender's set. The sender's intersection
// is always empty.
func (psi *PSI) Intersection() []int {
	return psi.positions
}

func (psi *PSI) receive(inputs []ot.Label) error {
	// Identical elements share one cuckoo entry.
	positions := make(map[ot.Label][]int)
	var unique []ot.Label
	for idx, in := range inputs {
		if _, ok := positions[in]; !ok {
			unique = append(unique, in)
		}
		positions[in] = append(positions[in], idx)
	}

	table := NewTable(NewHasher(psi.hashKey, psi.bins), psi.bins)
	for _, in := range unique {
		if _, err := table.Insert(in); err != nil {
			return err
		}
	}

	// Code words for all bins.
	codes := make([][]byte, psi.bins)
	for j, b := range table.Bins {
		if b.Empty() {
			dummy, err := ot.NewLabel(psi.config.GetRandom())
			if err != nil {
				return err
			}
			codes[j] = psi.code(dummy, dummyHash)
		} else {
			codes[j] = psi.code(table.Item(j), b.Hash)
		}
	}
	codeCols := columns(codes, psi.bins)

	t0 := make([]*bitset.BitSet, CodeWidth)
	for i := 0; i < CodeWidth; i++ {
		t0[i] = prg(psi.seeds[i].L0, psi.bins)
		u := prg(psi.seeds[i].L1, psi.bins)
		u.InPlaceSymmetricDifference(t0[i])
		u.InPlaceSymmetricDifference(codeCols[i])

		data, err := u.MarshalBinary()
		if err != nil {
			return err
		}
		if err := psi.io.SendData(data); err != nil {
			return err
		}
	}
	if err := psi.io.Flush(); err != nil {
		return err
	}

	rows := transpose(t0, psi.bins)

	var sets [NumHashes]map[string]struct{}
	for h := 0; h < NumHashes; h++ {
		count, err := psi.io.ReceiveUint32()
		if err != nil {
			return err
		}
		data, err := psi.io.ReceiveData()
		if err != nil {
			return err
		}
		if len(data) != count*psi.encLen {
			return fmt.Errorf("hash %d: invalid encoding data length %d",
				h, len(data))
		}
		sets[h] = make(map[string]struct{}, count)
		for i := 0; i < count; i++ {
			sets[h][string(data[i*psi.encLen:(i+1)*psi.encLen])] = struct{}{}
		}
	}

	psi.positions = nil
	for j, b := range table.Bins {
		if b.Empty() {
			continue
		}
		enc := psi.output(j, rows[j])
		if _, ok := sets[b.Hash][string(enc)]; ok {
			psi.positions = append(psi.positions, positions[table.Item(j)]...)
		}
	}
	slices.Sort(psi.positions)

	return nil
}

func (psi *PSI) send(inputs []ot.Label) error {
	q := make([]*bitset.BitSet, CodeWidth)
	for i := 0; i < CodeWidth; i++ {
		data, err := psi.io.ReceiveData()
		if err != nil {
			return err
		}
		u := new(bitset.BitSet)
		if err := u.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		if u.Len() != uint(psi.bins) {
			return fmt.Errorf("column %d: invalid length %d, expected %d",
				i, u.Len(), psi.bins)
		}
		q[i] = prg(psi.chosen[i], psi.bins)
		if psi.choices.Test(uint(i)) {
			q[i].InPlaceSymmetricDifference(u)
		}
	}
	rows := transpose(q, psi.bins)

	hasher := NewHasher(psi.hashKey, psi.bins)
	val := make([]byte, codeBytes)

	for h := 0; h < NumHashes; h++ {
		encs := make([][]byte, 0, len(inputs))
		for _, in := range inputs {
			j := hasher.Bin(h, in)
			code := psi.code(in, h)
			for i := range val {
				val[i] = rows[j][i] ^ (code[i] & psi.choiceBytes[i])
			}
			encs = append(encs, psi.output(j, val))
		}
		slices.SortFunc(encs, bytes.Compare)

		data := make([]byte, 0, len(encs)*psi.encLen)
		for _, enc := range encs {
			data = append(data, enc...)
		}
		if err := psi.io.SendUint32(len(encs)); err != nil {
			return err
		}
		if err := psi.io.SendData(data); err != nil {
			return err
		}
	}
	return psi.io.Flush()
}

// code computes the pseudorandom code word for the element and the
// hash function index.
func (psi *PSI) code(element ot.Label, h int) []byte {
	var data ot.LabelData
	hasher, _ := blake3.NewKeyed(psi.codeKey[:])
	hasher.Write(element.Bytes(&data))
	hasher.Write([]byte{byte(h)})

	result := make([]byte, codeBytes)
	hasher.Digest().Read(result)
	return result
}

// output computes the OPRF output encoding for the bin and the row.
func (psi *PSI) output(bin int, row []byte) []byte {
	hasher := blake3.NewDeriveKey(outputCtx)

	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(bin))
	hasher.Write(tmp[:])
	hasher.Write(row)

	return hasher.Sum(nil)[:psi.encLen]
}

// prg expands the seed into a bitset of n bits. The n must be a
// multiple of 64.
func prg(seed ot.Label, n int) *bitset.BitSet {
	var data ot.LabelData
	key := blake3.Sum256(seed.Bytes(&data))
	var nonce [chacha20.NonceSize]byte

	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic(err)
	}
	buf := make([]byte, n/8)
	cipher.XORKeyStream(buf, buf)

	words := make([]uint64, n/64)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return bitset.From(words)
}

// columns converts code word rows into CodeWidth columns of n bits.
func columns(rows [][]byte, n int) []*bitset.BitSet {
	cols := make([]*bitset.BitSet, CodeWidth)
	for i := range cols {
		cols[i] = bitset.New(uint(n))
	}
	for j, row := range rows {
		for i := 0; i < CodeWidth; i++ {
			if bit(row, i) {
				cols[i].Set(uint(j))
			}
		}
	}
	return cols
}

// transpose converts CodeWidth columns of n bits into n rows.
func transpose(cols []*bitset.BitSet, n int) [][]byte {
	rows := make([][]byte, n)
	for j := range rows {
		rows[j] = make([]byte, codeBytes)
	}
	for i, col := range cols {
		for j, ok := col.NextSet(0); ok && j < uint(n); j, ok = col.NextSet(j + 1) {
			rows[j][i>>3] |= 1 << (i & 7)
		}
	}
	return rows
}

func bit(data []byte, i int) bool {
	return data[i>>3]&(1<<(i&7)) != 0
}
