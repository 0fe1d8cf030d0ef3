package stats

import (
	"strings"
	"testing"

	"github.com/pgavlin/wasmir/wast"
	"github.com/pgavlin/wasmir/wax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const module = `(module
  (import "env" "log" (func $log (param i32)))
  (memory 1)
  (global $g (mut i32) (i32.const 0))
  (func $f (export "f") (param $p i32) (local $x i32) (local $unused i64)
    (block $out
      (loop $again
        (local.set $x (i32.load (local.get $p)))
        (br_if $out (i32.eqz (local.get $x)))
        (call $log (local.get $x))
        (global.set $g (local.get $x))
        (br $again)))))`

func TestCollect(t *testing.T) {
	m, err := wast.DecodeModule(strings.NewReader(module))
	require.NoError(t, err)
	out, err := wax.DecompileModule(m, wax.Options{})
	require.NoError(t, err)

	_, ok := Collect(out.Functions[0])
	assert.False(t, ok)

	r, ok := Collect(out.Functions[1])
	require.True(t, ok)
	assert.Equal(t, "$f", r.Function)
	assert.Equal(t, uint32(1), r.Funcidx)
	assert.Equal(t, "f", r.Exports)
	assert.Equal(t, 1, r.Params)
	assert.Equal(t, 0, r.Results)
	assert.Equal(t, 2, r.LocalCount)
	assert.Equal(t, uint(2), r.LocalsUsed)
	assert.Equal(t, uint(1), r.LocalsStored)
	assert.Equal(t, uint(1), r.GlobalsUsed)
	assert.Equal(t, 2, r.MaxNesting)
	assert.Equal(t, 1, r.Block)
	assert.Equal(t, 1, r.Loop)
	assert.Equal(t, 2, r.Branch)
	assert.Equal(t, 1, r.Call)
	assert.Equal(t, 1, r.Load)
	assert.Equal(t, 0, r.Invalid)
}

func TestWriteStats(t *testing.T) {
	m, err := wast.DecodeModule(strings.NewReader(module))
	require.NoError(t, err)
	out, err := wax.DecompileModule(m, wax.Options{})
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, WriteStats(&b, out))

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "function,funcidx,exports,params,results,local count,"))
	assert.True(t, strings.HasPrefix(lines[1], "$f,1,f,1,0,2,2,1,1,"))
}
