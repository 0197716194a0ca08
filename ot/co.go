//
// co.go
//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//
// Chou Orlandi OT - The Simplest Protocol for Oblivious Transfer.
//  - https://eprint.iacr.org/2015/267.pdf

package ot

import (
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"math/big"
)

var (
	_ OT = &CO{}
)

// ErrPointNotOnCurve signals that a peer sent a point that is not on
// the active curve.
var ErrPointNotOnCurve = errors.New("ot: point not on curve")

// CO implements CO OT as the OT interface.
type CO struct {
	rand   io.Reader
	curve  elliptic.Curve
	hash   hash.Hash
	digest []byte
	io     IO
}

// NewCO creates a new CO OT implementing the OT interface. The rand
// argument specifies the source of entropy; if nil, crypto/rand is
// used.
func NewCO(r io.Reader) *CO {
	if r == nil {
		r = rand.Reader
	}
	return &CO{
		rand:   r,
		curve:  elliptic.P256(),
		hash:   sha256.New(),
		digest: make([]byte, sha256.Size),
	}
}

// InitSender initializes the OT sender.
func (co *CO) InitSender(io IO) error {
	co.io = io
	if err := SendString(io, co.curve.Params().Name); err != nil {
		return err
	}
	return io.Flush()
}

// InitReceiver initializes the OT receiver.
func (co *CO) InitReceiver(io IO) error {
	co.io = io

	name, err := ReceiveString(io)
	if err != nil {
		return err
	}
	if name != co.curve.Params().Name {
		return fmt.Errorf("invalid curve %s, expected %s",
			name, co.curve.Params().Name)
	}
	return nil
}

// Send sends the wire labels with OT.
func (co *CO) Send(wires []Wire) error {
	curveParams := co.curve.Params()

	// a <- Zp
	a, err := rand.Int(co.rand, curveParams.N)
	if err != nil {
		return err
	}
	aBytes := a.Bytes()

	// A = G^a
	Ax, Ay := co.curve.ScalarBaseMult(aBytes)

	if err := SendBigInt(co.io, Ax); err != nil {
		return err
	}
	if err := SendBigInt(co.io, Ay); err != nil {
		return err
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	// Aa = A^a, AaInv = {Aax, -Aay}
	Aax, Aay := co.curve.ScalarMult(Ax, Ay, aBytes)
	AaInvx := big.NewInt(0).Set(Aax)
	AaInvy := big.NewInt(0).Sub(curveParams.P, Aay)

	Bs := make([][2]*big.Int, len(wires))
	for i := 0; i < len(wires); i++ {
		Bx, err := ReceiveBigInt(co.io)
		if err != nil {
			return err
		}
		By, err := ReceiveBigInt(co.io)
		if err != nil {
			return err
		}
		if !co.curve.IsOnCurve(Bx, By) {
			return fmt.Errorf("wire %d: %w", i, ErrPointNotOnCurve)
		}
		Bs[i] = [2]*big.Int{Bx, By}
	}

	for i := 0; i < len(wires); i++ {
		// B^a and (B/A)^a
		Bax, Bay := co.curve.ScalarMult(Bs[i][0], Bs[i][1], aBytes)
		Bix, Biy := co.curve.Add(Bax, Bay, AaInvx, AaInvy)

		var labelData LabelData

		wires[i].L0.GetData(&labelData)
		e0 := xor(co.kdf(Bax, Bay, uint64(i)), labelData[:])
		if err := co.io.SendData(e0); err != nil {
			return err
		}
		wires[i].L1.GetData(&labelData)
		e1 := xor(co.kdf(Bix, Biy, uint64(i)), labelData[:])
		if err := co.io.SendData(e1); err != nil {
			return err
		}
	}
	return co.io.Flush()
}

// Receive receives the wire labels with OT based on the flag values.
func (co *CO) Receive(flags []bool, result []Label) error {
	if len(flags) != len(result) {
		return fmt.Errorf("flag count %d does not match result count %d",
			len(flags), len(result))
	}
	curveParams := co.curve.Params()

	Ax, err := ReceiveBigInt(co.io)
	if err != nil {
		return err
	}
	Ay, err := ReceiveBigInt(co.io)
	if err != nil {
		return err
	}
	if !co.curve.IsOnCurve(Ax, Ay) {
		return ErrPointNotOnCurve
	}

	bs := make([][]byte, len(flags))
	for i := 0; i < len(flags); i++ {
		// b <= Zp
		b, err := rand.Int(co.rand, curveParams.N)
		if err != nil {
			return err
		}
		bs[i] = b.Bytes()

		Bx, By := co.curve.ScalarBaseMult(bs[i])
		if flags[i] {
			Bx, By = co.curve.Add(Bx, By, Ax, Ay)
		}
		if err := SendBigInt(co.io, Bx); err != nil {
			return err
		}
		if err := SendBigInt(co.io, By); err != nil {
			return err
		}
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	for i := 0; i < len(flags); i++ {
		e0, err := co.io.ReceiveData()
		if err != nil {
			return err
		}
		e1, err := co.io.ReceiveData()
		if err != nil {
			return err
		}
		e := e0
		if flags[i] {
			e = e1
		}
		if len(e) != len(LabelData{}) {
			return fmt.Errorf("wire %d: invalid ciphertext length %d", i, len(e))
		}

		Asx, Asy := co.curve.ScalarMult(Ax, Ay, bs[i])
		data := xor(co.kdf(Asx, Asy, uint64(i)), e)
		result[i].SetBytes(data)
	}
	return nil
}

// kdf derives the pad for the point and the wire index. The returned
// slice is valid until the next kdf call.
func (co *CO) kdf(x, y *big.Int, id uint64) []byte {
	co.hash.Reset()
	co.hash.Write(x.Bytes())
	co.hash.Write(y.Bytes())

	var tmp [8]byte
	bo.PutUint64(tmp[:], id)
	co.hash.Write(tmp[:])

	return co.hash.Sum(co.digest[:0])
}

func xor(a, b []byte) []byte {
	l := len(a)
	if len(b) < l {
		l = len(b)
	}
	for i := 0; i < l; i++ {
		a[i] ^= b[i]
	}
	return a[:l]
}
