// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Table values are packed with a small hand-rolled binary encoding rather
// than a general-purpose serialization library: erigon-lib's own table
// values (erigon-lib/kv/tables.go) are manually packed fixed/variable-width
// byte layouts, not a generic codec, and this package follows the same
// convention for the same reason — every value here is opaque outside this
// package, so there is no wire-compatibility requirement a general codec
// would buy us.
package provider

import (
	"encoding/binary"
	"fmt"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

type byteWriter struct{ buf []byte }

func (w *byteWriter) u8(v uint8)    { w.buf = append(w.buf, v) }
func (w *byteWriter) u64(v uint64)  { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *byteWriter) felt(f felt.Felt) {
	b := f.Bytes()
	w.buf = append(w.buf, b[:]...)
}
func (w *byteWriter) bytes(b []byte) {
	w.u64(uint64(len(b)))
	w.buf = append(w.buf, b...)
}
func (w *byteWriter) str(s string) { w.bytes([]byte(s)) }
func (w *byteWriter) felts(fs []felt.Felt) {
	w.u64(uint64(len(fs)))
	for _, f := range fs {
		w.felt(f)
	}
}

type byteReader struct {
	buf []byte
	off int
}

func newByteReader(b []byte) *byteReader { return &byteReader{buf: b} }

func (r *byteReader) u8() (uint8, error) {
	if r.off+1 > len(r.buf) {
		return 0, fmt.Errorf("codec: truncated u8")
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if r.off+8 > len(r.buf) {
		return 0, fmt.Errorf("codec: truncated u64")
	}
	v := binary.BigEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v, nil
}

func (r *byteReader) felt() (felt.Felt, error) {
	if r.off+32 > len(r.buf) {
		return felt.Zero, fmt.Errorf("codec: truncated felt")
	}
	f := felt.FromBytesBE(r.buf[r.off : r.off+32])
	r.off += 32
	return f, nil
}

func (r *byteReader) bytes() ([]byte, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	if r.off+int(n) > len(r.buf) {
		return nil, fmt.Errorf("codec: truncated bytes")
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return append([]byte(nil), b...), nil
}

func (r *byteReader) str() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

func (r *byteReader) felts() ([]felt.Felt, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	out := make([]felt.Felt, n)
	for i := range out {
		if out[i], err = r.felt(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeU64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func encodeFelt(f felt.Felt) []byte {
	b := f.Bytes()
	return b[:]
}

func decodeFelt(b []byte) felt.Felt { return felt.FromBytesBE(b) }

// --- Header ---

func encodeHeader(h types.Header) []byte {
	w := &byteWriter{}
	w.felt(h.ParentHash)
	w.u64(h.Number)
	w.u64(h.Timestamp)
	w.felt(h.SequencerAddress)
	w.str(h.StarknetVersion)
	w.u8(uint8(h.L1DAMode))
	for _, p := range []types.ResourcePrice{h.GasPrices.L1GasPrice, h.GasPrices.L1DataGasPrice, h.GasPrices.L2GasPrice} {
		w.felt(p.PriceInWei)
		w.felt(p.PriceInFri)
	}
	w.u64(h.TransactionCount)
	w.u64(h.StateDiffLength)
	w.u64(h.EventsCount)
	w.felt(h.StateRoot)
	w.felt(h.TransactionsCommitment)
	w.felt(h.EventsCommitment)
	w.felt(h.ReceiptsCommitment)
	w.felt(h.StateDiffCommitment)
	return w.buf
}

func decodeHeader(b []byte) (types.Header, error) {
	r := newByteReader(b)
	var h types.Header
	var err error
	if h.ParentHash, err = r.felt(); err != nil {
		return h, err
	}
	if h.Number, err = r.u64(); err != nil {
		return h, err
	}
	if h.Timestamp, err = r.u64(); err != nil {
		return h, err
	}
	if h.SequencerAddress, err = r.felt(); err != nil {
		return h, err
	}
	if h.StarknetVersion, err = r.str(); err != nil {
		return h, err
	}
	mode, err := r.u8()
	if err != nil {
		return h, err
	}
	h.L1DAMode = types.L1DAMode(mode)
	prices := make([]*types.ResourcePrice, 3)
	prices[0], prices[1], prices[2] = &h.GasPrices.L1GasPrice, &h.GasPrices.L1DataGasPrice, &h.GasPrices.L2GasPrice
	for _, p := range prices {
		if p.PriceInWei, err = r.felt(); err != nil {
			return h, err
		}
		if p.PriceInFri, err = r.felt(); err != nil {
			return h, err
		}
	}
	if h.TransactionCount, err = r.u64(); err != nil {
		return h, err
	}
	if h.StateDiffLength, err = r.u64(); err != nil {
		return h, err
	}
	if h.EventsCount, err = r.u64(); err != nil {
		return h, err
	}
	if h.StateRoot, err = r.felt(); err != nil {
		return h, err
	}
	if h.TransactionsCommitment, err = r.felt(); err != nil {
		return h, err
	}
	if h.EventsCommitment, err = r.felt(); err != nil {
		return h, err
	}
	if h.ReceiptsCommitment, err = r.felt(); err != nil {
		return h, err
	}
	if h.StateDiffCommitment, err = r.felt(); err != nil {
		return h, err
	}
	return h, nil
}

// --- BlockBodyIndices ---

func encodeBodyIndices(idx types.StoredBlockBodyIndices) []byte {
	w := &byteWriter{}
	w.u64(idx.TxOffset)
	w.u64(idx.TxCount)
	return w.buf
}

func decodeBodyIndices(b []byte) (types.StoredBlockBodyIndices, error) {
	r := newByteReader(b)
	var idx types.StoredBlockBodyIndices
	var err error
	if idx.TxOffset, err = r.u64(); err != nil {
		return idx, err
	}
	if idx.TxCount, err = r.u64(); err != nil {
		return idx, err
	}
	return idx, nil
}

// --- Transaction ---

func encodeTx(tx types.Transaction) []byte {
	w := &byteWriter{}
	w.u8(uint8(tx.Kind))
	w.felt(tx.ChainID)
	w.felt(tx.Nonce)
	w.felts(tx.Signature)
	w.felt(tx.SenderAddress)
	w.felts(tx.Calldata)
	for _, rb := range []types.ResourceBounds{tx.Fee.L1Gas, tx.Fee.L1DataGas, tx.Fee.L2Gas} {
		w.u64(rb.MaxAmount)
		w.felt(rb.MaxPricePerUnit)
	}
	w.felt(tx.Fee.MaxFee)
	w.u8(uint8(tx.NonceDAMode))
	w.u8(uint8(tx.FeeDAMode))
	w.felts(tx.PaymasterData)
	w.felts(tx.AccountDeploymentData)
	w.u64(tx.Tip)
	w.felt(tx.ClassHash)
	w.felt(tx.CompiledClassHash)
	if tx.ContractClass != nil {
		w.u8(1)
		w.bytes(encodeClass(*tx.ContractClass))
	} else {
		w.u8(0)
	}
	w.felt(tx.ContractAddressSalt)
	w.felts(tx.ConstructorCalldata)
	w.felt(tx.EntryPointSelector)
	w.felt(tx.FromAddress)
	w.u64(tx.PaidFeeOnL1)
	return w.buf
}

func decodeTx(b []byte) (types.Transaction, error) {
	r := newByteReader(b)
	var tx types.Transaction
	var err error
	kind, err := r.u8()
	if err != nil {
		return tx, err
	}
	tx.Kind = types.TxKind(kind)
	if tx.ChainID, err = r.felt(); err != nil {
		return tx, err
	}
	if tx.Nonce, err = r.felt(); err != nil {
		return tx, err
	}
	if tx.Signature, err = r.felts(); err != nil {
		return tx, err
	}
	if tx.SenderAddress, err = r.felt(); err != nil {
		return tx, err
	}
	if tx.Calldata, err = r.felts(); err != nil {
		return tx, err
	}
	bounds := []*types.ResourceBounds{&tx.Fee.L1Gas, &tx.Fee.L1DataGas, &tx.Fee.L2Gas}
	for _, rb := range bounds {
		if rb.MaxAmount, err = r.u64(); err != nil {
			return tx, err
		}
		if rb.MaxPricePerUnit, err = r.felt(); err != nil {
			return tx, err
		}
	}
	if tx.Fee.MaxFee, err = r.felt(); err != nil {
		return tx, err
	}
	nonceDA, err := r.u8()
	if err != nil {
		return tx, err
	}
	tx.NonceDAMode = types.L1DAMode(nonceDA)
	feeDA, err := r.u8()
	if err != nil {
		return tx, err
	}
	tx.FeeDAMode = types.L1DAMode(feeDA)
	if tx.PaymasterData, err = r.felts(); err != nil {
		return tx, err
	}
	if tx.AccountDeploymentData, err = r.felts(); err != nil {
		return tx, err
	}
	if tx.Tip, err = r.u64(); err != nil {
		return tx, err
	}
	if tx.ClassHash, err = r.felt(); err != nil {
		return tx, err
	}
	if tx.CompiledClassHash, err = r.felt(); err != nil {
		return tx, err
	}
	hasClass, err := r.u8()
	if err != nil {
		return tx, err
	}
	if hasClass == 1 {
		classBytes, err := r.bytes()
		if err != nil {
			return tx, err
		}
		cls, err := decodeClass(classBytes)
		if err != nil {
			return tx, err
		}
		tx.ContractClass = &cls
	}
	if tx.ContractAddressSalt, err = r.felt(); err != nil {
		return tx, err
	}
	if tx.ConstructorCalldata, err = r.felts(); err != nil {
		return tx, err
	}
	if tx.EntryPointSelector, err = r.felt(); err != nil {
		return tx, err
	}
	if tx.FromAddress, err = r.felt(); err != nil {
		return tx, err
	}
	if tx.PaidFeeOnL1, err = r.u64(); err != nil {
		return tx, err
	}
	return tx, nil
}

// --- Receipt ---

func encodeReceipt(rc types.Receipt) []byte {
	w := &byteWriter{}
	w.u8(uint8(rc.TxKind))
	w.felt(rc.Fee.Amount)
	w.str(rc.Fee.Unit)
	w.u64(uint64(len(rc.Events)))
	for _, e := range rc.Events {
		w.felt(e.FromAddress)
		w.felts(e.Keys)
		w.felts(e.Data)
	}
	w.u64(uint64(len(rc.MessagesToL1)))
	for _, m := range rc.MessagesToL1 {
		w.felt(m.FromAddress)
		w.felt(m.ToAddress)
		w.felts(m.Payload)
	}
	w.u8(uint8(rc.Result))
	w.str(rc.RevertReason)
	w.u64(rc.ExecutionResources.Steps)
	w.u64(rc.ExecutionResources.MemoryHoles)
	w.u64(uint64(len(rc.ExecutionResources.Builtins)))
	for name, count := range rc.ExecutionResources.Builtins {
		w.str(name)
		w.u64(count)
	}
	w.u64(rc.DAConsumed)
	w.u64(rc.GasConsumed)
	return w.buf
}

func decodeReceipt(b []byte) (types.Receipt, error) {
	r := newByteReader(b)
	var rc types.Receipt
	var err error
	kind, err := r.u8()
	if err != nil {
		return rc, err
	}
	rc.TxKind = types.TxKind(kind)
	if rc.Fee.Amount, err = r.felt(); err != nil {
		return rc, err
	}
	if rc.Fee.Unit, err = r.str(); err != nil {
		return rc, err
	}
	nEvents, err := r.u64()
	if err != nil {
		return rc, err
	}
	rc.Events = make([]types.Event, nEvents)
	for i := range rc.Events {
		if rc.Events[i].FromAddress, err = r.felt(); err != nil {
			return rc, err
		}
		if rc.Events[i].Keys, err = r.felts(); err != nil {
			return rc, err
		}
		if rc.Events[i].Data, err = r.felts(); err != nil {
			return rc, err
		}
	}
	nMsgs, err := r.u64()
	if err != nil {
		return rc, err
	}
	rc.MessagesToL1 = make([]types.MsgToL1, nMsgs)
	for i := range rc.MessagesToL1 {
		if rc.MessagesToL1[i].FromAddress, err = r.felt(); err != nil {
			return rc, err
		}
		if rc.MessagesToL1[i].ToAddress, err = r.felt(); err != nil {
			return rc, err
		}
		if rc.MessagesToL1[i].Payload, err = r.felts(); err != nil {
			return rc, err
		}
	}
	result, err := r.u8()
	if err != nil {
		return rc, err
	}
	rc.Result = types.ExecutionResultKind(result)
	if rc.RevertReason, err = r.str(); err != nil {
		return rc, err
	}
	if rc.ExecutionResources.Steps, err = r.u64(); err != nil {
		return rc, err
	}
	if rc.ExecutionResources.MemoryHoles, err = r.u64(); err != nil {
		return rc, err
	}
	nBuiltins, err := r.u64()
	if err != nil {
		return rc, err
	}
	rc.ExecutionResources.Builtins = make(map[string]uint64, nBuiltins)
	for i := uint64(0); i < nBuiltins; i++ {
		name, err := r.str()
		if err != nil {
			return rc, err
		}
		count, err := r.u64()
		if err != nil {
			return rc, err
		}
		rc.ExecutionResources.Builtins[name] = count
	}
	if rc.DAConsumed, err = r.u64(); err != nil {
		return rc, err
	}
	if rc.GasConsumed, err = r.u64(); err != nil {
		return rc, err
	}
	return rc, nil
}

// --- ContractClass ---

func encodeClass(c types.ContractClass) []byte {
	w := &byteWriter{}
	w.u8(uint8(c.Kind))
	if c.Kind == types.ClassLegacy && c.Legacy != nil {
		w.bytes(c.Legacy.Program)
		encodeLegacyEntryPoints(w, c.Legacy.ExternalEntryPoints)
		encodeLegacyEntryPoints(w, c.Legacy.L1HandlerEntryPoints)
		encodeLegacyEntryPoints(w, c.Legacy.ConstructorEntryPoints)
	} else if c.Kind == types.ClassSierra && c.Sierra != nil {
		w.felts(c.Sierra.Program)
		w.str(c.Sierra.ABI)
		encodeSierraEntryPoints(w, c.Sierra.ExternalEntryPoints)
		encodeSierraEntryPoints(w, c.Sierra.L1HandlerEntryPoints)
		encodeSierraEntryPoints(w, c.Sierra.ConstructorEntryPoints)
		w.str(c.Sierra.ContractClassVersion)
	}
	return w.buf
}

func encodeLegacyEntryPoints(w *byteWriter, eps []types.LegacyEntryPoint) {
	w.u64(uint64(len(eps)))
	for _, ep := range eps {
		w.felt(ep.Selector)
		w.u64(ep.Offset)
	}
}

func decodeLegacyEntryPoints(r *byteReader) ([]types.LegacyEntryPoint, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	out := make([]types.LegacyEntryPoint, n)
	for i := range out {
		if out[i].Selector, err = r.felt(); err != nil {
			return nil, err
		}
		if out[i].Offset, err = r.u64(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func encodeSierraEntryPoints(w *byteWriter, eps []types.SierraEntryPoint) {
	w.u64(uint64(len(eps)))
	for _, ep := range eps {
		w.felt(ep.Selector)
		w.u64(ep.FunctionID)
	}
}

func decodeSierraEntryPoints(r *byteReader) ([]types.SierraEntryPoint, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	out := make([]types.SierraEntryPoint, n)
	for i := range out {
		if out[i].Selector, err = r.felt(); err != nil {
			return nil, err
		}
		if out[i].FunctionID, err = r.u64(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeClass(b []byte) (types.ContractClass, error) {
	r := newByteReader(b)
	var c types.ContractClass
	kind, err := r.u8()
	if err != nil {
		return c, err
	}
	c.Kind = types.ClassKind(kind)
	switch c.Kind {
	case types.ClassLegacy:
		legacy := &types.LegacyClass{}
		if legacy.Program, err = r.bytes(); err != nil {
			return c, err
		}
		if legacy.ExternalEntryPoints, err = decodeLegacyEntryPoints(r); err != nil {
			return c, err
		}
		if legacy.L1HandlerEntryPoints, err = decodeLegacyEntryPoints(r); err != nil {
			return c, err
		}
		if legacy.ConstructorEntryPoints, err = decodeLegacyEntryPoints(r); err != nil {
			return c, err
		}
		c.Legacy = legacy
	case types.ClassSierra:
		sierra := &types.SierraClass{}
		if sierra.Program, err = r.felts(); err != nil {
			return c, err
		}
		if sierra.ABI, err = r.str(); err != nil {
			return c, err
		}
		if sierra.ExternalEntryPoints, err = decodeSierraEntryPoints(r); err != nil {
			return c, err
		}
		if sierra.L1HandlerEntryPoints, err = decodeSierraEntryPoints(r); err != nil {
			return c, err
		}
		if sierra.ConstructorEntryPoints, err = decodeSierraEntryPoints(r); err != nil {
			return c, err
		}
		if sierra.ContractClassVersion, err = r.str(); err != nil {
			return c, err
		}
		c.Sierra = sierra
	}
	return c, nil
}

// --- ContractInfo ---

func encodeContractInfo(ci types.GenericContractInfo) []byte {
	w := &byteWriter{}
	w.felt(ci.ClassHash)
	w.felt(ci.Nonce)
	return w.buf
}

func decodeContractInfo(b []byte) (types.GenericContractInfo, error) {
	r := newByteReader(b)
	var ci types.GenericContractInfo
	var err error
	if ci.ClassHash, err = r.felt(); err != nil {
		return ci, err
	}
	if ci.Nonce, err = r.felt(); err != nil {
		return ci, err
	}
	return ci, nil
}

// --- TransactionTrace ---

func encodeTrace(t types.TransactionTrace) []byte {
	w := &byteWriter{}
	w.u8(uint8(t.Kind))
	w.bytes(t.Raw)
	return w.buf
}

func decodeTrace(b []byte) (types.TransactionTrace, error) {
	r := newByteReader(b)
	var t types.TransactionTrace
	kind, err := r.u8()
	if err != nil {
		return t, err
	}
	t.Kind = types.TxKind(kind)
	if t.Raw, err = r.bytes(); err != nil {
		return t, err
	}
	return t, nil
}
