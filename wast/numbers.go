package wast

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parseInt parses an integer literal of the given width. Both the signed and the unsigned range are
// accepted; the result is the two's complement bit pattern.
func parseInt(text string, size uint) (uint64, error) {
	neg := false
	digits := text
	switch {
	case strings.HasPrefix(digits, "-"):
		neg, digits = true, digits[1:]
	case strings.HasPrefix(digits, "+"):
		digits = digits[1:]
	}

	mag, err := parseNat(digits)
	if err != nil {
		return 0, fmt.Errorf("malformed integer %q", text)
	}

	if neg {
		if mag > uint64(1)<<(size-1) {
			return 0, fmt.Errorf("integer %s out of range", text)
		}
		return -mag & mask(size), nil
	}
	if mag > mask(size) {
		return 0, fmt.Errorf("integer %s out of range", text)
	}
	return mag, nil
}

func parseNat(digits string) (uint64, error) {
	base := 10
	if strings.HasPrefix(digits, "0x") {
		base, digits = 16, digits[2:]
	}
	if digits == "" || digits[0] == '_' || digits[len(digits)-1] == '_' || strings.Contains(digits, "__") {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseUint(strings.ReplaceAll(digits, "_", ""), base, 64)
}

// parseU32 parses an unsigned index or memory argument.
func parseU32(text string) (uint32, error) {
	v, err := parseNat(text)
	if err != nil || v > math.MaxUint32 {
		return 0, fmt.Errorf("malformed index %q", text)
	}
	return uint32(v), nil
}

func mask(size uint) uint64 {
	if size == 64 {
		return math.MaxUint64
	}
	return uint64(1)<<size - 1
}

type floatFormat struct {
	size    int
	expBits uint64
	quiet   uint64
	payload uint64
	signBit uint64
	fromF64 func(float64) uint64
}

var (
	f32Format = floatFormat{
		size:    32,
		expBits: 0x7f800000,
		quiet:   0x00400000,
		payload: 0x007fffff,
		signBit: 0x80000000,
		fromF64: func(f float64) uint64 { return uint64(math.Float32bits(float32(f))) },
	}
	f64Format = floatFormat{
		size:    64,
		expBits: 0x7ff0000000000000,
		quiet:   0x0008000000000000,
		payload: 0x000fffffffffffff,
		signBit: 0x8000000000000000,
		fromF64: math.Float64bits,
	}
)

// parseFloat parses a floating point literal and returns its bit pattern. NaN payloads are preserved.
func parseFloat(text string, f floatFormat) (uint64, error) {
	sign, body := uint64(0), text
	switch {
	case strings.HasPrefix(body, "-"):
		sign, body = f.signBit, body[1:]
	case strings.HasPrefix(body, "+"):
		body = body[1:]
	}

	switch {
	case body == "inf":
		return sign | f.expBits, nil
	case body == "nan":
		return sign | f.expBits | f.quiet, nil
	case strings.HasPrefix(body, "nan:0x"):
		payload, err := parseNat(body[len("nan:"):])
		if err != nil || payload == 0 || payload&^f.payload != 0 {
			return 0, fmt.Errorf("malformed NaN %q", text)
		}
		return sign | f.expBits | payload, nil
	}

	if strings.Contains(body, "__") || strings.HasSuffix(body, "_") {
		return 0, fmt.Errorf("malformed float %q", text)
	}
	body = strings.ReplaceAll(body, "_", "")
	if strings.HasPrefix(body, "0x") && !strings.ContainsAny(body, "pP") {
		body += "p0"
	}

	v, err := strconv.ParseFloat(body, f.size)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("malformed or out of range float %q", text)
	}
	return sign | f.fromF64(v), nil
}
