// Copyright 2018 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package readpos tracks the number of bytes consumed from a reader so that
// decode errors can report the offset at which they occurred.
package readpos

import "io"

// ReadPos implements io.Reader and io.ByteReader, counting the bytes read from R.
type ReadPos struct {
	R      io.Reader
	CurPos int64
}

// Read implements the io.Reader interface.
func (r *ReadPos) Read(p []byte) (int, error) {
	n, err := r.R.Read(p)
	r.CurPos += int64(n)
	return n, err
}

// ReadByte implements the io.ByteReader interface.
func (r *ReadPos) ReadByte() (byte, error) {
	var p [1]byte
	if _, err := io.ReadFull(r, p[:]); err != nil {
		return 0, err
	}
	return p[0], nil
}
