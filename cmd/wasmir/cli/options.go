// Package cli holds the state and helpers shared by the wasmir subcommands.
package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pgavlin/wasmir/ir"
	"github.com/pgavlin/wasmir/load"
	"github.com/pgavlin/wasmir/wax"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Options holds the persistent flags of the root command.
type Options struct {
	Validate      bool
	KeepGoing     bool
	FoldConstants bool

	Logger *zap.Logger
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Load reads the module at path and reconstructs its IR. If KeepGoing is set, functions that fail to
// reconstruct are logged and left without a body.
func (o *Options) Load(ctx context.Context, path string) (*ir.Module, error) {
	m, err := load.LoadFile(ctx, path, load.Options{Validate: o.Validate, KeepGoing: o.KeepGoing})
	if err != nil {
		if m == nil {
			return nil, err
		}
		for _, err := range multierr.Errors(err) {
			o.logger().Warn("replacing function body", zap.String("path", path), zap.Error(err))
		}
	}

	out, err := wax.DecompileModule(m, wax.Options{KeepGoing: o.KeepGoing, FoldConstants: o.FoldConstants})
	if err != nil {
		if out == nil {
			return nil, err
		}
		for _, err := range multierr.Errors(err) {
			o.logger().Warn("skipping function", zap.String("path", path), zap.Error(err))
		}
	}
	return out, nil
}

// SelectFunctions returns the functions named by filter: an index, a function name, or an export name.
// An empty filter selects every function.
func SelectFunctions(m *ir.Module, filter string) ([]*ir.Function, error) {
	if filter == "" {
		return m.Functions, nil
	}
	if index, err := strconv.ParseUint(filter, 10, 32); err == nil {
		if f, ok := m.Function(uint32(index)); ok {
			return []*ir.Function{f}, nil
		}
		return nil, fmt.Errorf("function index %d out of range (module has %d functions)", index, len(m.Functions))
	}
	if f, ok := m.LookupFunction(filter); ok {
		return []*ir.Function{f}, nil
	}
	return nil, fmt.Errorf("no function named %q", filter)
}
