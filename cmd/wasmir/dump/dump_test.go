package dump

import (
	"strings"
	"testing"

	"github.com/pgavlin/wasmir/ir"
	"github.com/pgavlin/wasmir/wast"
	"github.com/pgavlin/wasmir/wax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decompile(t *testing.T, text string) *ir.Module {
	m, err := wast.DecodeModule(strings.NewReader(text))
	require.NoError(t, err)
	out, err := wax.DecompileModule(m, wax.Options{})
	require.NoError(t, err)
	return out
}

func TestDump(t *testing.T) {
	m := decompile(t, `(module
  (func $one (result i32) (i32.const 1))
  (func $two (export "two") (result i32) (i32.const 2)))`)

	var all strings.Builder
	require.NoError(t, Dump(&all, m, "", ir.PlainStyle{}))
	assert.Equal(t, ir.Sprint(m), all.String())

	var two strings.Builder
	require.NoError(t, Dump(&two, m, "two", ir.PlainStyle{}))
	assert.Equal(t, ir.Sprint(m.Functions[1]), two.String())
	assert.NotContains(t, two.String(), "$one")

	assert.Error(t, Dump(&two, m, "three", ir.PlainStyle{}))
}
