// Package models defines the persisted data model for earnboard
package models

import (
	"bytes"
	"fmt"
	"strconv"
)

// BigInt is an int64 that serializes to a JSON string. Market caps and
// revenue figures exceed the 2^53 range JavaScript numbers represent exactly,
// so the read API must never emit them as native JSON numbers.
type BigInt int64

// MarshalJSON renders the value as a quoted decimal string.
func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(b), 10))), nil
}

// UnmarshalJSON accepts both a quoted string and a bare number.
func (b *BigInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	s := string(data)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %q into BigInt: %w", string(data), err)
	}
	*b = BigInt(n)
	return nil
}

// BigIntPtr returns a pointer to a BigInt with the given value.
func BigIntPtr(n int64) *BigInt {
	b := BigInt(n)
	return &b
}

// BigIntFromPtr converts a possibly-nil *int64 to a possibly-nil *BigInt.
func BigIntFromPtr(n *int64) *BigInt {
	if n == nil {
		return nil
	}
	b := BigInt(*n)
	return &b
}

// Int64 returns the value of a possibly-nil BigInt pointer.
func (b *BigInt) Int64() (int64, bool) {
	if b == nil {
		return 0, false
	}
	return int64(*b), true
}
