// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package commitment

import (
	"sort"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

// eventHash is H(tx_hash, from_address, H(keys), H(data)), literally as
// given in §4.7's events_commitment definition.
func eventHash(txHash felt.Felt, e types.Event) felt.Felt {
	keysHash := felt.PoseidonHashArray(e.Keys)
	dataHash := felt.PoseidonHashArray(e.Data)
	return felt.PoseidonHashArray([]felt.Felt{txHash, e.FromAddress, keysHash, dataHash})
}

// eventLeaves flattens every event across receipts, in receipt order then
// intra-receipt order (§4.7 events_commitment), into its per-event hash.
func eventLeaves(receipts []types.ReceiptWithTxHash) []felt.Felt {
	var hashes []felt.Felt
	for _, r := range receipts {
		for _, e := range r.Receipt.Events {
			hashes = append(hashes, eventHash(r.TxHash, e))
		}
	}
	return hashes
}

// receiptHash composes a receipt's chain-specified commitment leaf: fee,
// messages hash, event count, execution resources and the revert
// reason if any (§4.7 "the chain-specified composition over fee, messages,
// events count, etc.").
func receiptHash(r types.ReceiptWithTxHash) felt.Felt {
	unit := felt.Zero
	if r.Receipt.Fee.Unit == "FRI" {
		unit = felt.FromUint64(1)
	}

	msgHashes := make([]felt.Felt, 0, len(r.Receipt.MessagesToL1))
	for _, m := range r.Receipt.MessagesToL1 {
		msgHashes = append(msgHashes, felt.PoseidonHashArray(append([]felt.Felt{m.FromAddress, m.ToAddress}, m.Payload...)))
	}
	messagesHash := felt.PoseidonHashArray(msgHashes)

	revertHash := felt.Zero
	if r.Receipt.Result == types.ExecutionReverted {
		revertHash = felt.PoseidonHash(felt.FromUint64(1), feltFromASCII(r.Receipt.RevertReason))
	}

	builtins := make([]string, 0, len(r.Receipt.ExecutionResources.Builtins))
	for name := range r.Receipt.ExecutionResources.Builtins {
		builtins = append(builtins, name)
	}
	sort.Strings(builtins)
	builtinSum := uint64(0)
	for _, name := range builtins {
		builtinSum += r.Receipt.ExecutionResources.Builtins[name]
	}

	return felt.PoseidonHashArray([]felt.Felt{
		r.TxHash,
		r.Receipt.Fee.Amount,
		unit,
		messagesHash,
		felt.FromUint64(uint64(len(r.Receipt.Events))),
		revertHash,
		felt.FromUint64(r.Receipt.ExecutionResources.Steps),
		felt.FromUint64(r.Receipt.ExecutionResources.MemoryHoles),
		felt.FromUint64(builtinSum),
		felt.FromUint64(r.Receipt.DAConsumed),
		felt.FromUint64(r.Receipt.GasConsumed),
	})
}

// stateDiffCommitment hashes the resolved state diff (§4.7 "chain-specified
// hash of state_updates"): every map is iterated in sorted felt order so the
// result never depends on Go's randomized map iteration, a requirement for
// the sequential/parallel parity property (§8 property 5).
func stateDiffCommitment(s *types.StateUpdates) felt.Felt {
	var fields []felt.Felt

	fields = append(fields, felt.FromUint64(uint64(len(s.DeployedContracts))))
	for _, addr := range sortedKeys(s.DeployedContracts) {
		fields = append(fields, addr, s.DeployedContracts[addr])
	}

	fields = append(fields, felt.FromUint64(uint64(len(s.ReplacedClasses))))
	for _, addr := range sortedKeys(s.ReplacedClasses) {
		fields = append(fields, addr, s.ReplacedClasses[addr])
	}

	fields = append(fields, felt.FromUint64(uint64(len(s.NonceUpdates))))
	for _, addr := range sortedKeys(s.NonceUpdates) {
		fields = append(fields, addr, s.NonceUpdates[addr])
	}

	storageAddrs := sortedKeys(s.StorageUpdates)
	fields = append(fields, felt.FromUint64(uint64(len(storageAddrs))))
	for _, addr := range storageAddrs {
		diff := s.StorageUpdates[addr]
		fields = append(fields, addr, felt.FromUint64(uint64(len(diff))))
		for _, key := range sortedKeys(diff) {
			fields = append(fields, key, diff[key])
		}
	}

	fields = append(fields, felt.FromUint64(uint64(len(s.DeclaredClasses))))
	for _, ch := range sortedKeys(s.DeclaredClasses) {
		fields = append(fields, ch, s.DeclaredClasses[ch])
	}

	deprecated := s.DeprecatedDeclaredClasses.ToSlice()
	sort.Slice(deprecated, func(i, j int) bool { return deprecated[i].Cmp(deprecated[j]) < 0 })
	fields = append(fields, felt.FromUint64(uint64(len(deprecated))))
	fields = append(fields, deprecated...)

	return felt.PoseidonHashArray(fields)
}

// stateDiffLength is the header's state_diff_length field: the count of
// deployed contracts, replaced classes, nonce updates, declared classes and
// individual storage writes (§4.7 header assembly). Deprecated declared
// classes and migrated compiled classes are not counted.
func stateDiffLength(s *types.StateUpdates) uint64 {
	n := uint64(len(s.DeployedContracts)) + uint64(len(s.ReplacedClasses)) + uint64(len(s.NonceUpdates)) + uint64(len(s.DeclaredClasses))
	for _, diff := range s.StorageUpdates {
		n += uint64(len(diff))
	}
	return n
}

// sortedKeys returns m's keys in ascending felt order, the deterministic
// iteration order every state-diff field above needs.
func sortedKeys[V any](m map[felt.Felt]V) []felt.Felt {
	keys := make([]felt.Felt, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Cmp(keys[j]) < 0 })
	return keys
}

func feltFromASCII(s string) felt.Felt {
	return felt.FromBytesBE([]byte(s))
}
