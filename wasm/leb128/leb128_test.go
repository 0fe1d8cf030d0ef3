// Copyright 2018 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package leb128

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var casesUint = []struct {
	v uint32
	b []byte
}{
	{v: 0, b: []byte{0x00}},
	{v: 1, b: []byte{0x01}},
	{v: 2, b: []byte{0x02}},
	{v: 63, b: []byte{0x3f}},
	{v: 64, b: []byte{0x40}},
	{v: 127, b: []byte{0x7f}},
	{v: 128, b: []byte{0x80, 0x01}},
	{v: 129, b: []byte{0x81, 0x01}},
	{v: 624485, b: []byte{0xe5, 0x8e, 0x26}},
	{v: math.MaxUint32, b: []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
}

var casesInt = []struct {
	v int64
	b []byte
}{
	{v: 0, b: []byte{0x00}},
	{v: 1, b: []byte{0x01}},
	{v: -1, b: []byte{0x7f}},
	{v: 63, b: []byte{0x3f}},
	{v: -64, b: []byte{0x40}},
	{v: 64, b: []byte{0xc0, 0x00}},
	{v: -65, b: []byte{0xbf, 0x7f}},
	{v: 127, b: []byte{0xff, 0x00}},
	{v: 128, b: []byte{0x80, 0x01}},
	{v: -128, b: []byte{0x80, 0x7f}},
	{v: -123456, b: []byte{0xc0, 0xbb, 0x78}},
}

func TestWriteVarUint32(t *testing.T) {
	for _, c := range casesUint {
		t.Run(fmt.Sprint(c.v), func(t *testing.T) {
			buf := new(bytes.Buffer)
			_, err := WriteVarUint32(buf, c.v)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf.Bytes(), c.b) {
				t.Fatalf("unexpected output: %x", buf.Bytes())
			}
		})
	}
}

func TestReadVarUint32(t *testing.T) {
	for _, c := range casesUint {
		t.Run(fmt.Sprint(c.v), func(t *testing.T) {
			v, err := ReadVarUint32(bytes.NewReader(c.b))
			require.NoError(t, err)
			assert.Equal(t, c.v, v)
		})
	}
}

func TestWriteVarint64(t *testing.T) {
	for _, c := range casesInt {
		t.Run(fmt.Sprint(c.v), func(t *testing.T) {
			buf := new(bytes.Buffer)
			_, err := WriteVarint64(buf, c.v)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf.Bytes(), c.b) {
				t.Fatalf("unexpected output: %x", buf.Bytes())
			}
		})
	}
}

func TestReadVarint64(t *testing.T) {
	for _, c := range casesInt {
		t.Run(fmt.Sprint(c.v), func(t *testing.T) {
			v, err := ReadVarint64(bytes.NewReader(c.b))
			require.NoError(t, err)
			assert.Equal(t, c.v, v)
		})
	}
}

func TestRoundTripRepresentative(t *testing.T) {
	signed := []int64{0, 1, 127, 128, -1, math.MinInt32, math.MaxInt32, math.MinInt64, math.MaxInt64}
	for _, v := range signed {
		t.Run(fmt.Sprintf("signed/%d", v), func(t *testing.T) {
			var buf bytes.Buffer
			_, err := WriteVarint64(&buf, v)
			require.NoError(t, err)

			got, err := ReadVarint64(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, v, got)

			if v >= math.MinInt32 && v <= math.MaxInt32 {
				got32, err := ReadVarint32(bytes.NewReader(buf.Bytes()))
				require.NoError(t, err)
				assert.Equal(t, int32(v), got32)
			}
		})
	}

	unsigned := []uint64{0, 1, 127, 128, math.MaxInt32, math.MaxUint32, math.MaxInt64, math.MaxUint64}
	for _, v := range unsigned {
		t.Run(fmt.Sprintf("unsigned/%d", v), func(t *testing.T) {
			var buf bytes.Buffer
			_, err := WriteVarUint64(&buf, v)
			require.NoError(t, err)

			got, err := ReadVarUint64(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, v, got)

			if v <= math.MaxUint32 {
				got32, err := ReadVarUint32(bytes.NewReader(buf.Bytes()))
				require.NoError(t, err)
				assert.Equal(t, uint32(v), got32)
			}
		})
	}
}

func TestReadErrors(t *testing.T) {
	_, err := ReadVarUint32(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)

	_, err = ReadVarUint32(bytes.NewReader([]byte{0x80, 0x80}))
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = ReadVarUint32(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0x1f}))
	assert.Equal(t, ErrOverflow, err)

	_, err = ReadVarUint32(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}))
	assert.Equal(t, ErrOverflow, err)

	_, err = ReadVarint32(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x08}))
	assert.Equal(t, ErrOverflow, err)
}

func TestWriteReadInt64(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	var buf bytes.Buffer
	for i := 0; i < 100000; i++ {
		n := r.Int63() - r.Int63()

		buf.Reset()
		_, err := WriteVarint64(&buf, n)
		if err != nil {
			t.Fatalf("WriteVarint64: %v", err)
		}

		v, err := ReadVarint64(&buf)
		if err != nil {
			t.Fatalf("ReadVarint64: %v", err)
		}

		if v != n {
			t.Fatalf("wrote %v; read %v", n, v)
		}
	}
}

func TestWriteReadUint32(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	var buf bytes.Buffer
	for i := 0; i < 100000; i++ {
		n := r.Uint32()

		buf.Reset()
		_, err := WriteVarUint32(&buf, n)
		if err != nil {
			t.Fatalf("WriteVarUint32: %v", err)
		}

		v, err := ReadVarUint32(&buf)
		if err != nil {
			t.Fatalf("ReadVarUint32: %v", err)
		}

		if v != n {
			t.Fatalf("wrote %v; read %v", n, v)
		}
	}
}
