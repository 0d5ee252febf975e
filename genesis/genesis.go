// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package genesis loads the JSON genesis document (§4.7 "Genesis special
// path", named a non-goal collaborator in spec.md §1 — but still a
// DbProvider/commitment caller that must compile and exercise the core) and
// derives or re-verifies block 0 through the same commitment pipeline every
// other block goes through. Grounded on original_source/crates/core's
// genesis module and, for filesystem abstraction, on the teacher's use of
// afero-free direct os calls generalized to github.com/spf13/afero so tests
// can load a genesis document from an in-memory filesystem.
package genesis

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

// ClassArtifact is one genesis class entry: either the compiled artifact
// inlined directly in the document, or a path to it resolved relative to
// the document's own directory (spec.md §6 data model: "classes[] entries
// are either inline JSON artifacts or relative paths ... round-trips
// losslessly").
type ClassArtifact struct {
	ClassHash         string          `json:"class_hash"`
	CompiledClassHash string          `json:"compiled_class_hash,omitempty"`
	Path              string          `json:"path,omitempty"`
	Inline            json.RawMessage `json:"artifact,omitempty"`
}

// Allocation seeds one contract's nonce, class and storage at genesis.
type Allocation struct {
	Address   string            `json:"address"`
	ClassHash string            `json:"class_hash"`
	Nonce     string            `json:"nonce,omitempty"`
	Storage   map[string]string `json:"storage,omitempty"`
}

// Document is the on-disk genesis JSON shape.
type Document struct {
	Timestamp        uint64            `json:"timestamp"`
	SequencerAddress string            `json:"sequencer_address"`
	GasPrices        GasPricesDocument `json:"gas_prices"`
	Classes          []ClassArtifact   `json:"classes"`
	Allocations      []Allocation      `json:"allocations"`
}

// GasPricesDocument mirrors types.GasPrices with JSON-friendly hex strings.
type GasPricesDocument struct {
	L1GasPrice     string `json:"l1_gas_price"`
	L1DataGasPrice string `json:"l1_data_gas_price"`
	L2GasPrice     string `json:"l2_gas_price"`
}

// Load reads and parses a genesis document from fs at path, resolving any
// class artifact Path entries relative to path's directory.
func Load(fs afero.Fs, path string) (*Document, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i, c := range doc.Classes {
		if c.Inline != nil || c.Path == "" {
			continue
		}
		resolved := filepath.Join(dir, c.Path)
		artifact, err := afero.ReadFile(fs, resolved)
		if err != nil {
			return nil, fmt.Errorf("genesis: read class artifact %s: %w", resolved, err)
		}
		doc.Classes[i].Inline = artifact
	}
	return &doc, nil
}

// hexFelt parses a hex string, defaulting to Felt::ZERO when empty.
func hexFelt(s string) (felt.Felt, error) {
	if s == "" {
		return felt.Zero, nil
	}
	return felt.FromHex(s)
}

// Resolve turns the parsed document into the PartialHeader and StateUpdates
// the commitment pipeline needs, plus the raw class artifacts keyed by
// class hash (§6 "round-trips losslessly to the in-memory genesis
// structure").
func (d *Document) Resolve() (types.PartialHeader, *types.StateUpdates, map[felt.Felt]json.RawMessage, error) {
	seq, err := hexFelt(d.SequencerAddress)
	if err != nil {
		return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: sequencer_address: %w", err)
	}
	l1Gas, err := hexFelt(d.GasPrices.L1GasPrice)
	if err != nil {
		return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: l1_gas_price: %w", err)
	}
	l1Data, err := hexFelt(d.GasPrices.L1DataGasPrice)
	if err != nil {
		return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: l1_data_gas_price: %w", err)
	}
	l2Gas, err := hexFelt(d.GasPrices.L2GasPrice)
	if err != nil {
		return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: l2_gas_price: %w", err)
	}

	header := types.PartialHeader{
		ParentHash:       felt.Zero,
		Number:           0,
		Timestamp:        d.Timestamp,
		SequencerAddress: seq,
		StarknetVersion:  "0.13.5",
		L1DAMode:         types.DAModeCalldata,
		GasPrices: types.GasPrices{
			L1GasPrice:     types.ResourcePrice{PriceInWei: l1Gas, PriceInFri: l1Gas},
			L1DataGasPrice: types.ResourcePrice{PriceInWei: l1Data, PriceInFri: l1Data},
			L2GasPrice:     types.ResourcePrice{PriceInWei: l2Gas, PriceInFri: l2Gas},
		},
	}

	state := types.NewStateUpdates()
	artifacts := make(map[felt.Felt]json.RawMessage, len(d.Classes))
	for _, c := range d.Classes {
		ch, err := felt.FromHex(c.ClassHash)
		if err != nil {
			return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: class_hash %q: %w", c.ClassHash, err)
		}
		if c.CompiledClassHash != "" {
			cch, err := felt.FromHex(c.CompiledClassHash)
			if err != nil {
				return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: compiled_class_hash %q: %w", c.CompiledClassHash, err)
			}
			state.DeclaredClasses[ch] = cch
		} else {
			state.DeprecatedDeclaredClasses.Add(ch)
		}
		artifacts[ch] = c.Inline
	}

	for _, a := range d.Allocations {
		addr, err := felt.FromHex(a.Address)
		if err != nil {
			return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: allocation address %q: %w", a.Address, err)
		}
		classHash, err := felt.FromHex(a.ClassHash)
		if err != nil {
			return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: allocation class_hash %q: %w", a.ClassHash, err)
		}
		state.DeployedContracts[addr] = classHash

		nonce, err := hexFelt(a.Nonce)
		if err != nil {
			return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: allocation nonce %q: %w", a.Nonce, err)
		}
		if !nonce.IsZero() {
			state.NonceUpdates[addr] = nonce
		}

		keys := make([]string, 0, len(a.Storage))
		for k := range a.Storage {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key, err := felt.FromHex(k)
			if err != nil {
				return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: allocation storage key %q: %w", k, err)
			}
			val, err := felt.FromHex(a.Storage[k])
			if err != nil {
				return types.PartialHeader{}, nil, nil, fmt.Errorf("genesis: allocation storage value %q: %w", a.Storage[k], err)
			}
			state.PutStorage(addr, key, val)
		}
	}

	return header, state, artifacts, nil
}
