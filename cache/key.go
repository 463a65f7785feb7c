package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Key is a structural identifier naming one cacheable unit of remote data,
// for example ["docs", "projects", "vi-home-one"].
//
// Two keys are equal iff their segment sequences are equal element-wise.
// Segments are normalized on construction: every integer kind becomes int64
// (or uint64 above math.MaxInt64) and integral floats collapse to int64, so
// 1 and 1.0 name the same segment while "1" does not.
//
// The zero Key is invalid; use NewKey or MustKey.
type Key struct {
	segs    []any
	encoded string
}

// NewKey builds a key from primitive segments (string, bool, integers, floats).
func NewKey(segments ...any) (Key, error) {
	if len(segments) == 0 {
		return Key{}, ErrEmptyKey
	}

	norm := make([]any, len(segments))
	for i, s := range segments {
		v, err := normalizeSegment(s)
		if err != nil {
			return Key{}, fmt.Errorf("%w: segment %d: %v", ErrInvalidKey, i, err)
		}
		norm[i] = v
	}

	encoded, err := encodeSegments(norm)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(encoded) > MaxKeyLength {
		return Key{}, ErrKeyTooLong
	}

	return Key{segs: norm, encoded: encoded}, nil
}

// MustKey is like NewKey but panics on invalid input. Intended for
// package-level key declarations.
func MustKey(segments ...any) Key {
	k, err := NewKey(segments...)
	if err != nil {
		panic(err)
	}
	return k
}

// Append returns a new key with segments added after k's segments.
func (k Key) Append(segments ...any) (Key, error) {
	all := make([]any, 0, len(k.segs)+len(segments))
	all = append(all, k.segs...)
	all = append(all, segments...)
	return NewKey(all...)
}

// String returns the canonical encoding, a compact JSON array.
// It is the identity used for map lookups.
func (k Key) String() string {
	return k.encoded
}

// IsZero reports whether k was never constructed.
func (k Key) IsZero() bool {
	return k.encoded == ""
}

// Len returns the number of segments.
func (k Key) Len() int {
	return len(k.segs)
}

// Segments returns a copy of the normalized segments.
func (k Key) Segments() []any {
	out := make([]any, len(k.segs))
	copy(out, k.segs)
	return out
}

// Segment returns the i-th segment.
func (k Key) Segment(i int) any {
	return k.segs[i]
}

// Equal reports structural equality.
func (k Key) Equal(other Key) bool {
	return k.encoded == other.encoded
}

// HasPrefix reports whether prefix's segments lead k's segments.
// A key is a prefix of itself.
func (k Key) HasPrefix(prefix Key) bool {
	if prefix.IsZero() || len(prefix.segs) > len(k.segs) {
		return false
	}
	for i, s := range prefix.segs {
		if k.segs[i] != s {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the key as its segment array.
func (k Key) MarshalJSON() ([]byte, error) {
	if k.IsZero() {
		return []byte("null"), nil
	}
	return []byte(k.encoded), nil
}

// UnmarshalJSON decodes a segment array.
func (k *Key) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*k = Key{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	parsed, err := NewKey(raw...)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func normalizeSegment(s any) (any, error) {
	switch v := s.(type) {
	case string:
		return v, nil
	case bool:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return normalizeUint(uint64(v)), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return normalizeUint(v), nil
	case float32:
		return normalizeFloat(float64(v))
	case float64:
		return normalizeFloat(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return normalizeFloat(f)
	default:
		return nil, fmt.Errorf("unsupported segment type %T", s)
	}
}

func normalizeUint(v uint64) any {
	if v <= math.MaxInt64 {
		return int64(v)
	}
	return v
}

func normalizeFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f), nil
	}
	return f, nil
}

// encodeSegments produces the canonical JSON array for normalized segments.
func encodeSegments(segs []any) (string, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, s := range segs {
		if i > 0 {
			b.WriteByte(',')
		}
		enc, err := json.Marshal(s)
		if err != nil {
			return "", err
		}
		b.Write(enc)
	}
	b.WriteByte(']')
	return b.String(), nil
}
