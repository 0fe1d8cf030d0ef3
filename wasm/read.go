// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/pgavlin/wasmir/wasm/leb128"
)

// maxInitialCap bounds the capacity preallocated from untrusted counts.
const maxInitialCap = 10 * 1024

func getInitialCap(count uint32) uint32 {
	if count > maxInitialCap {
		return maxInitialCap
	}
	return count
}

func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// readBytes reads exactly n bytes into a freshly allocated buffer.
func readBytes(r io.Reader, n uint32) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(getInitialCap(n)))
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func readBytesUint(r io.Reader) ([]byte, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	return readBytes(r, n)
}

func readUTF8StringUint(r io.Reader) (string, error) {
	b, err := readBytesUint(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("wasm: invalid UTF-8 name")
	}
	return string(b), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// readInitExpr reads a constant expression up to and including its terminating end opcode and returns
// its raw encoding.
func readInitExpr(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	tee := io.TeeReader(r, &buf)

	for {
		op, err := readByte(tee)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		switch op {
		case 0x0b: // end
			return buf.Bytes(), nil
		case 0x41: // i32.const
			_, err = leb128.ReadVarint32(tee)
		case 0x42: // i64.const
			_, err = leb128.ReadVarint64(tee)
		case 0x43: // f32.const
			_, err = io.CopyN(io.Discard, tee, 4)
		case 0x44: // f64.const
			_, err = io.CopyN(io.Discard, tee, 8)
		case 0x23, 0xd2: // global.get, ref.func
			_, err = leb128.ReadVarUint32(tee)
		case 0xd0: // ref.null
			_, err = readByte(tee)
		case 0x6a, 0x6b, 0x6c, 0x7c, 0x7d, 0x7e: // extended constant arithmetic
		default:
			return nil, fmt.Errorf("wasm: invalid opcode 0x%02x in constant expression", op)
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}
