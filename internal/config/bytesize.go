package config

import (
	"fmt"
	"reflect"
	"strconv"

	units "github.com/docker/go-units"
	"github.com/go-viper/mapstructure/v2"
)

// ByteSize is a size in bytes that can be written as a human readable string
// such as "4K", "256KiB" or "10G". units are always binary (K = 1024).
type ByteSize uint64

// ParseByteSize parses s into a ByteSize
func ParseByteSize(s string) (ByteSize, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid byte size %q: negative", s)
	}
	return ByteSize(n), nil
}

// String returns the size with a binary unit suffix when that is exact,
// e.g. "256KiB", and as a plain byte count otherwise
func (b ByteSize) String() string {
	if short, ok := b.short(); ok {
		return short
	}
	return strconv.FormatUint(uint64(b), 10)
}

// short formats b with a unit suffix and reports whether it parses back to b
func (b ByteSize) short() (string, bool) {
	s := units.BytesSize(float64(b))
	back, err := units.RAMInBytes(s)
	return s, err == nil && back == int64(b)
}

// Set implements pflag.Value
func (b *ByteSize) Set(s string) error {
	v, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Type implements pflag.Value
func (b *ByteSize) Type() string {
	return "bytes"
}

// MarshalYAML writes round sizes with a unit suffix and anything else as a
// plain byte count, so the value parses back unchanged
func (b ByteSize) MarshalYAML() (any, error) {
	if short, ok := b.short(); ok {
		return short, nil
	}
	return uint64(b), nil
}

// byteSizeDecodeHook converts strings and numbers to ByteSize when decoding
// configuration maps
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return ParseByteSize(v)
		case int:
			if v < 0 {
				return nil, fmt.Errorf("invalid byte size %d: negative", v)
			}
			return ByteSize(v), nil
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("invalid byte size %d: negative", v)
			}
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			// yaml numbers can arrive as floats
			return ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
