package wast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInt(t *testing.T) {
	cases := []struct {
		text     string
		size     uint
		expected uint64
		ok       bool
	}{
		{"0", 32, 0, true},
		{"-1", 32, 0xffffffff, true},
		{"0xffffffff", 32, 0xffffffff, true},
		{"4294967296", 32, 0, false},
		{"-2147483648", 32, 0x80000000, true},
		{"-2147483649", 32, 0, false},
		{"+12", 32, 12, true},
		{"1_000", 64, 1000, true},
		{"-0x8000000000000000", 64, 0x8000000000000000, true},
		{"18446744073709551615", 64, math.MaxUint64, true},
		{"1__0", 64, 0, false},
		{"_1", 64, 0, false},
		{"0x", 32, 0, false},
		{"12a", 32, 0, false},
	}
	for _, c := range cases {
		v, err := parseInt(c.text, c.size)
		if !c.ok {
			assert.Error(t, err, c.text)
			continue
		}
		if assert.NoError(t, err, c.text) {
			assert.Equal(t, c.expected, v, c.text)
		}
	}
}

func TestParseFloat(t *testing.T) {
	f32 := func(f float32) uint64 { return uint64(math.Float32bits(f)) }

	cases := []struct {
		text     string
		format   floatFormat
		expected uint64
	}{
		{"1.5", f32Format, f32(1.5)},
		{"-2", f32Format, f32(-2)},
		{"1_000.5", f64Format, math.Float64bits(1000.5)},
		{"1e3", f64Format, math.Float64bits(1000)},
		{"0x1p-1", f64Format, math.Float64bits(0.5)},
		{"0x1.8", f64Format, math.Float64bits(1.5)},
		{"0x10", f32Format, f32(16)},
		{"inf", f32Format, 0x7f800000},
		{"-inf", f64Format, 0xfff0000000000000},
		{"nan", f32Format, 0x7fc00000},
		{"-nan", f32Format, 0xffc00000},
		{"nan:0x200000", f32Format, 0x7fa00000},
		{"nan:0x1", f64Format, 0x7ff0000000000001},
	}
	for _, c := range cases {
		v, err := parseFloat(c.text, c.format)
		if assert.NoError(t, err, c.text) {
			assert.Equal(t, c.expected, v, c.text)
		}
	}

	for _, text := range []string{"1e400", "nan:0x0", "nan:0x800000", "1__0", "x"} {
		_, err := parseFloat(text, f32Format)
		assert.Error(t, err, text)
	}
}

func TestParseU32(t *testing.T) {
	v, err := parseU32("0x10")
	assert.NoError(t, err)
	assert.Equal(t, uint32(16), v)

	_, err = parseU32("4294967296")
	assert.Error(t, err)

	_, err = parseU32("-1")
	assert.Error(t, err)
}
