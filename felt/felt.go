// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package felt implements the 252-bit Stark field element, the universal
// scalar type for hashes, addresses, storage keys/values and class hashes.
package felt

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Prime is the Stark field modulus: 2**251 + 17*2**192 + 1.
var Prime = func() *uint256.Int {
	p, _ := uint256.FromHex("0x800000000000011000000000000000000000000000000000000000000000001")
	return p
}()

// Felt is a field element modulo Prime, stored as a 256-bit integer that is
// always kept reduced. The zero value is the additive identity.
type Felt struct {
	v uint256.Int
}

// Zero, One are the additive and multiplicative identities.
var (
	Zero = Felt{}
	One  = FromUint64(1)
)

// FromUint64 builds a Felt from a small unsigned integer.
func FromUint64(x uint64) Felt {
	var f Felt
	f.v.SetUint64(x)
	return f
}

// FromBigInt reduces an arbitrary big.Int modulo Prime.
func FromBigInt(x *big.Int) Felt {
	var f Felt
	f.v.SetFromBig(new(big.Int).Mod(x, Prime.ToBig()))
	return f
}

// FromBytesBE interprets a big-endian byte slice as a Felt, reducing modulo Prime.
func FromBytesBE(b []byte) Felt {
	var v uint256.Int
	v.SetBytes(b)
	var f Felt
	f.v.Mod(&v, Prime)
	return f
}

// MustFromHex parses a "0x..."-prefixed hex string; panics on malformed input.
// Intended for constants, genesis fixtures and tests.
func MustFromHex(s string) Felt {
	f, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FromHex parses a "0x..."-prefixed hex string into a Felt.
func FromHex(s string) (Felt, error) {
	v, err := uint256.FromHex(s)
	if err != nil {
		return Felt{}, fmt.Errorf("felt: invalid hex %q: %w", s, err)
	}
	var f Felt
	f.v.Mod(v, Prime)
	return f, nil
}

// Bytes returns the canonical 32-byte big-endian encoding.
func (f Felt) Bytes() [32]byte {
	return f.v.Bytes32()
}

// Hex returns the canonical "0x"-prefixed, non-zero-padded hex encoding.
func (f Felt) Hex() string {
	return f.v.Hex()
}

// String implements fmt.Stringer.
func (f Felt) String() string { return f.Hex() }

// IsZero reports whether f is the additive identity.
func (f Felt) IsZero() bool { return f.v.IsZero() }

// Cmp compares two Felts as unsigned 256-bit integers (canonical form, since
// both operands are always kept reduced).
func (f Felt) Cmp(o Felt) int { return f.v.Cmp(&o.v) }

// Equal reports whether f and o denote the same field element.
func (f Felt) Equal(o Felt) bool { return f.v.Eq(&o.v) }

// Add returns f + o mod Prime.
func (f Felt) Add(o Felt) Felt {
	var r Felt
	r.v.AddMod(&f.v, &o.v, Prime)
	return r
}

// Sub returns f - o mod Prime. uint256.Int is unsigned, so f.v.Sub(f, o)
// when f < o would wrap to f - o + 2**256, which is not congruent to
// f - o mod Prime; compute the borrow case as Prime - (o - f) instead.
func (f Felt) Sub(o Felt) Felt {
	var r Felt
	if f.v.Lt(&o.v) {
		var diff uint256.Int
		diff.Sub(&o.v, &f.v)
		r.v.Sub(Prime, &diff)
		return r
	}
	r.v.Sub(&f.v, &o.v)
	return r
}

// Mul returns f * o mod Prime.
func (f Felt) Mul(o Felt) Felt {
	var r Felt
	r.v.MulMod(&f.v, &o.v, Prime)
	return r
}

// Uint64 returns the low 64 bits of f, truncating.
func (f Felt) Uint64() uint64 { return f.v.Uint64() }

// MarshalText implements encoding.TextMarshaler, used by JSON genesis docs.
func (f Felt) MarshalText() ([]byte, error) { return []byte(f.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Felt) UnmarshalText(b []byte) error {
	v, err := FromHex(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ShortString renders the first and last 6 hex digits, for logging.
func (f Felt) ShortString() string {
	h := hex.EncodeToString(f.Bytes()[:])
	if len(h) <= 12 {
		return "0x" + h
	}
	return "0x" + h[:6] + "..." + h[len(h)-6:]
}
