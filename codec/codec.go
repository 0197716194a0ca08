//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package codec implements the wire encodings of PSI results and MPC
// shapes.
package codec

import (
	"encoding/binary"

	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
)

var bo = binary.BigEndian

const lenSize = 8

// EncodeResult encodes the result elements. Each element is encoded
// as its 8-byte big-endian length followed by its bytes.
func EncodeResult(elements [][]byte) []byte {
	size := len(elements) * lenSize
	for _, element := range elements {
		size += len(element)
	}
	buf := make([]byte, 0, size)
	for _, element := range elements {
		buf = bo.AppendUint64(buf, uint64(len(element)))
		buf = append(buf, element...)
	}
	return buf
}

// DecodeResult decodes the result elements from buf. Truncated
// buffers fail with retcode.ErrFormat and return no elements.
func DecodeResult(buf []byte) ([][]byte, error) {
	var result [][]byte
	for ofs := 0; ofs < len(buf); {
		if len(buf)-ofs < lenSize {
			return nil, retcode.Formatf("truncated length at offset %d", ofs)
		}
		l := bo.Uint64(buf[ofs:])
		ofs += lenSize
		if l > uint64(len(buf)-ofs) {
			return nil, retcode.Formatf(
				"element length %d at offset %d exceeds %d remaining bytes",
				l, ofs-lenSize, len(buf)-ofs)
		}
		element := make([]byte, l)
		copy(element, buf[ofs:])
		result = append(result, element)
		ofs += int(l)
	}
	return result, nil
}

// EncodeShape encodes an MPC input shape as a typed value: the value
// type byte, the array flag byte, the 4-byte value count, and the
// 8-byte big-endian values.
func EncodeShape(shape []int64) []byte {
	buf := make([]byte, 0, 6+len(shape)*8)
	buf = append(buf, byte(task.Int64), 1)
	buf = bo.AppendUint32(buf, uint32(len(shape)))
	for _, v := range shape {
		buf = bo.AppendUint64(buf, uint64(v))
	}
	return buf
}

// DecodeShape decodes an MPC input shape.
func DecodeShape(buf []byte) ([]int64, error) {
	if len(buf) < 6 {
		return nil, retcode.Formatf("truncated shape header")
	}
	if task.VarType(buf[0]) != task.Int64 || buf[1] != 1 {
		return nil, retcode.Formatf("invalid shape type %d/%d", buf[0], buf[1])
	}
	count := int(bo.Uint32(buf[2:]))
	if len(buf)-6 != count*8 {
		return nil, retcode.Formatf("shape of %d values has %d data bytes",
			count, len(buf)-6)
	}
	shape := make([]int64, count)
	for i := range shape {
		shape[i] = int64(bo.Uint64(buf[6+i*8:]))
	}
	return shape, nil
}
