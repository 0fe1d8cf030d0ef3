// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leb128 provides functions for reading and writing integers encoded
// in the Little Endian Base 128 (LEB128) format:
// https://en.wikipedia.org/wiki/LEB128
package leb128

import (
	"errors"
	"io"
)

// ErrOverflow is returned when an encoded integer does not fit in the requested width.
var ErrOverflow = errors.New("leb128: integer overflow")

func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readVarUint(r io.Reader, n uint) (uint64, error) {
	var res uint64
	for shift := uint(0); ; shift += 7 {
		b, err := readByte(r)
		if err != nil {
			if shift != 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if shift >= n || (n-shift < 7 && uint64(b&0x7f)>>(n-shift) != 0) {
			return 0, ErrOverflow
		}
		res |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return res, nil
		}
	}
}

func readVarint(r io.Reader, n uint) (int64, error) {
	var res int64
	var shift uint
	for {
		b, err := readByte(r)
		if err != nil {
			if shift != 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if shift >= n {
			return 0, ErrOverflow
		}
		res |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			// Sign-extend from the highest payload bit of the last byte.
			if shift < 64 && b&0x40 != 0 {
				res |= -1 << shift
			}
			break
		}
	}
	if n < 64 {
		min, max := int64(-1)<<(n-1), int64(1)<<(n-1)-1
		if res < min || res > max {
			return 0, ErrOverflow
		}
	}
	return res, nil
}

// ReadVarUint32 reads a LEB128 encoded unsigned 32-bit integer from r.
func ReadVarUint32(r io.Reader) (uint32, error) {
	v, err := readVarUint(r, 32)
	return uint32(v), err
}

// ReadVarUint64 reads a LEB128 encoded unsigned 64-bit integer from r.
func ReadVarUint64(r io.Reader) (uint64, error) {
	return readVarUint(r, 64)
}

// ReadVarint32 reads a LEB128 encoded signed 32-bit integer from r.
func ReadVarint32(r io.Reader) (int32, error) {
	v, err := readVarint(r, 32)
	return int32(v), err
}

// ReadVarint33 reads a LEB128 encoded signed 33-bit integer from r. Block types that refer to a type
// index use this encoding.
func ReadVarint33(r io.Reader) (int64, error) {
	return readVarint(r, 33)
}

// ReadVarint64 reads a LEB128 encoded signed 64-bit integer from r.
func ReadVarint64(r io.Reader) (int64, error) {
	return readVarint(r, 64)
}
