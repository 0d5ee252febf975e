// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package types

import "github.com/starkdev/node/felt"

// ClassKind distinguishes legacy Cairo 0 classes from Sierra classes
// (§9 "Legacy vs Sierra duality": a sum type, never inheritance).
type ClassKind uint8

const (
	ClassLegacy ClassKind = iota
	ClassSierra
)

// LegacyEntryPoint is one Cairo 0 entry point (selector -> program offset).
type LegacyEntryPoint struct {
	Selector felt.Felt
	Offset   uint64
}

// LegacyClass is a Cairo 0 program plus its entry points, keyed by call type.
type LegacyClass struct {
	Program             []byte // raw, compiled Cairo 0 program blob
	ExternalEntryPoints  []LegacyEntryPoint
	L1HandlerEntryPoints []LegacyEntryPoint
	ConstructorEntryPoints []LegacyEntryPoint
}

// SierraEntryPoint is one Sierra entry point (selector -> function id).
type SierraEntryPoint struct {
	Selector   felt.Felt
	FunctionID uint64
}

// SierraClass is a Sierra program, ABI and entry points by type.
type SierraClass struct {
	Program                []felt.Felt
	ABI                     string
	ExternalEntryPoints     []SierraEntryPoint
	L1HandlerEntryPoints    []SierraEntryPoint
	ConstructorEntryPoints  []SierraEntryPoint
	ContractClassVersion    string
}

// ContractClass is the tagged sum type over {Legacy, Sierra} (§3 "ContractClass").
type ContractClass struct {
	Kind   ClassKind
	Legacy *LegacyClass
	Sierra *SierraClass
}

// IsSierra reports whether this class carries a compiled_class_hash.
func (c *ContractClass) IsSierra() bool { return c.Kind == ClassSierra }
