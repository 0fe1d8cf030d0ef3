// Package load reads WebAssembly modules in either the binary or the text format.
package load

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wast"
	"go.uber.org/zap"
)

// Options controls how modules are loaded.
type Options struct {
	// Validate compiles binary input with wazero before decoding it.
	Validate bool

	// KeepGoing returns a text module even if some of its function bodies fail to translate. The failed
	// bodies trap, and the failures are returned alongside the module.
	KeepGoing bool
}

// IsBinary returns true if data begins with the binary format's magic number.
func IsBinary(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == wasm.Magic
}

// LoadModule decodes a module from r. Input that does not begin with the binary magic number is parsed as
// text.
func LoadModule(r io.Reader) (*wasm.Module, error) {
	return decode(r, Options{})
}

func decode(r io.Reader, options Options) (*wasm.Module, error) {
	br := bufio.NewReader(r)

	buf, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, err
	}

	if IsBinary(buf) {
		return wasm.DecodeModule(br)
	}
	return wast.DecodeModuleOptions(br, wast.Options{KeepGoing: options.KeepGoing})
}

// Load decodes a module from data. If KeepGoing is set, a text module may be returned together with an
// error describing the functions that failed.
func Load(ctx context.Context, data []byte, options Options) (*wasm.Module, error) {
	if options.Validate {
		if IsBinary(data) {
			if err := Validate(ctx, data); err != nil {
				return nil, err
			}
		} else {
			Logger().Debug("skipping validation of text module")
		}
	}
	return decode(bytes.NewReader(data), options)
}

// LoadFile decodes the module stored at path.
func LoadFile(ctx context.Context, path string, options Options) (*wasm.Module, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer release()

	Logger().Debug("loading module", zap.String("path", path), zap.Int("size", len(data)), zap.Bool("binary", IsBinary(data)))

	m, err := Load(ctx, data, options)
	if err != nil {
		return m, fmt.Errorf("%v: %w", path, err)
	}
	return m, nil
}
