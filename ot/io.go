//
// io.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.

package ot

import (
	"fmt"
	"math/big"
)

// IO defines an I/O interface to communicate between peers.
type IO interface {
	// SendData sends binary data.
	SendData(val []byte) error

	// SendUint32 sends an uint32 value.
	SendUint32(val int) error

	// Flush flushed any pending data in the connection.
	Flush() error

	// ReceiveData receives binary data.
	ReceiveData() ([]byte, error)

	// ReceiveUint32 receives an uint32 value.
	ReceiveUint32() (int, error)
}

// SendString sends a string value.
func SendString(io IO, str string) error {
	return io.SendData([]byte(str))
}

// ReceiveString receives a string value.
func ReceiveString(io IO) (string, error) {
	data, err := io.ReceiveData()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SendBigInt sends a big.Int value.
func SendBigInt(io IO, v *big.Int) error {
	return io.SendData(v.Bytes())
}

// ReceiveBigInt receives a bit.Int from the connection.
func ReceiveBigInt(io IO) (*big.Int, error) {
	data, err := io.ReceiveData()
	if err != nil {
		return nil, err
	}
	return big.NewInt(0).SetBytes(data), nil
}

// ReceiveFixed receives binary data that must be exactly size bytes
// long.
func ReceiveFixed(io IO, size int) ([]byte, error) {
	data, err := io.ReceiveData()
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("invalid data length %d, expected %d",
			len(data), size)
	}
	return data, nil
}
