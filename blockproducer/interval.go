// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package blockproducer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/starkdev/node/commitment"
	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/stateview"
	"github.com/starkdev/node/types"
)

// pendingSession accumulates the state diff of an interval producer's
// in-progress batch and implements stateview.ExecutorState so the pending
// view reflects it (§4.6 "the executor's in-memory state serves as the
// 'pending' view").
type pendingSession struct {
	mu      sync.RWMutex
	updates *types.StateUpdates
	classes map[felt.Felt]*types.ContractClass
}

func newPendingSession() *pendingSession {
	return &pendingSession{updates: types.NewStateUpdates(), classes: map[felt.Felt]*types.ContractClass{}}
}

func (s *pendingSession) Nonce(addr felt.Felt) (felt.Felt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.updates.NonceUpdates[addr]
	return v, ok
}

func (s *pendingSession) Storage(addr, key felt.Felt) (felt.Felt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	diff, ok := s.updates.StorageUpdates[addr]
	if !ok {
		return felt.Zero, false
	}
	v, ok := diff[key]
	return v, ok
}

func (s *pendingSession) ClassHashAt(addr felt.Felt) (felt.Felt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ch, ok := s.updates.ReplacedClasses[addr]; ok {
		return ch, true
	}
	if ch, ok := s.updates.DeployedContracts[addr]; ok {
		return ch, true
	}
	return felt.Zero, false
}

// merge folds one executed transaction's diff into the session.
func (s *pendingSession) merge(diff *types.StateUpdates, classes map[felt.Felt]*types.ContractClass) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range diff.NonceUpdates {
		s.updates.NonceUpdates[k] = v
	}
	for k, v := range diff.DeployedContracts {
		s.updates.DeployedContracts[k] = v
	}
	for k, v := range diff.ReplacedClasses {
		s.updates.ReplacedClasses[k] = v
	}
	for k, v := range diff.DeclaredClasses {
		s.updates.DeclaredClasses[k] = v
	}
	diff.DeprecatedDeclaredClasses.Each(func(ch felt.Felt) bool {
		s.updates.DeprecatedDeclaredClasses.Add(ch)
		return false
	})
	for k, v := range diff.MigratedCompiledClasses {
		s.updates.MigratedCompiledClasses[k] = v
	}
	for addr, d := range diff.StorageUpdates {
		cur, ok := s.updates.StorageUpdates[addr]
		if !ok {
			cur = types.StorageDiff{}
			s.updates.StorageUpdates[addr] = cur
		}
		for k, v := range d {
			cur[k] = v
		}
	}
	for ch, cls := range classes {
		s.classes[ch] = cls
	}
}

func (s *pendingSession) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = types.NewStateUpdates()
	s.classes = map[felt.Felt]*types.ContractClass{}
}

func (s *pendingSession) snapshot() (*types.StateUpdates, map[felt.Felt]*types.ContractClass) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates, s.classes
}

// IntervalProducer batches transactions in an executor session until a
// timer fires or the batch is force-sealed (§4.6 "Interval mode").
type IntervalProducer struct {
	c       *core
	session *pendingSession

	mu       sync.Mutex
	outcomes []TxOutcome

	interval time.Duration
	force    chan struct{}
	done     chan struct{}
	closeOne sync.Once
}

// NewIntervalProducer wires an IntervalProducer; if interval is zero, no
// timer runs and blocks are only sealed by ForceMine (the force_mine /
// generate_block admin RPCs).
func NewIntervalProducer(
	ctx context.Context,
	p provider.Provider,
	pipeline *commitment.Pipeline,
	bcg *BlockContextGenerator,
	oracle GasOracle,
	executor ExecutorFunc,
	sequencerAddress felt.Felt,
	daMode types.L1DAMode,
	interval time.Duration,
	log *zap.Logger,
) (*IntervalProducer, error) {
	c, err := newCore(ctx, p, pipeline, bcg, oracle, executor, sequencerAddress, daMode, log)
	if err != nil {
		return nil, err
	}
	ip := &IntervalProducer{
		c:        c,
		session:  newPendingSession(),
		interval: interval,
		force:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go ip.run()
	return ip, nil
}

func (ip *IntervalProducer) run() {
	if ip.interval <= 0 {
		return
	}
	t := time.NewTicker(ip.interval)
	defer t.Stop()
	for {
		select {
		case <-ip.done:
			return
		case <-t.C:
			_, _ = ip.ForceMine(context.Background())
		case <-ip.force:
			_, _ = ip.ForceMine(context.Background())
		}
	}
}

// Close stops the interval timer goroutine. It does not seal whatever is
// still pending.
func (ip *IntervalProducer) Close() {
	ip.closeOne.Do(func() { close(ip.done) })
}

// Clock exposes the shared BlockContextGenerator so admin RPCs can adjust
// timestamp offsets (§4.6 dev timestamp controls).
func (ip *IntervalProducer) Clock() *BlockContextGenerator { return ip.c.bcg }

// PendingView is the state view RPC reads consult while a batch is
// accumulating (§4.6).
func (ip *IntervalProducer) PendingView() *stateview.View {
	return stateview.Pending(ip.c.provider, ip.session)
}

// Submit executes tx against the pending view and folds its diff into the
// session immediately; sealing is deferred to ForceMine.
func (ip *IntervalProducer) Submit(ctx context.Context, tx types.Transaction) error {
	ip.c.mu.Lock()
	env := BlockEnv{
		Number:           ip.c.nextNumber,
		SequencerAddress: ip.c.sequencerAddress,
		StarknetVersion:  CurrentStarknetVersion,
		GasPrices:        ip.c.oracle.GasPrices(),
	}
	ip.c.mu.Unlock()

	out, err := ip.c.executor(ctx, ip.PendingView(), []types.Transaction{tx}, env)
	if err != nil {
		return err
	}

	ip.session.merge(out.State.StateUpdates, out.State.Classes)

	ip.mu.Lock()
	ip.outcomes = append(ip.outcomes, out.Outcomes...)
	ip.mu.Unlock()
	return nil
}

// RequestForceMine asynchronously wakes the timer goroutine to seal the
// current batch, the force_mine admin RPC's non-blocking form.
func (ip *IntervalProducer) RequestForceMine() {
	select {
	case ip.force <- struct{}{}:
	default:
	}
}

// ForceMine seals whatever is pending into a block — even an empty one,
// mirroring mine_empty_block — and resets the session for the next batch
// (§4.6, generate_block admin RPC).
func (ip *IntervalProducer) ForceMine(ctx context.Context) (MinedBlockOutcome, error) {
	ip.c.mu.Lock()
	defer ip.c.mu.Unlock()

	ip.mu.Lock()
	outcomes := ip.outcomes
	ip.outcomes = nil
	ip.mu.Unlock()

	updates, classes := ip.session.snapshot()

	env := ip.c.newEnv()
	out := ExecutionOutput{
		Outcomes: outcomes,
		State:    types.StateUpdatesWithClasses{StateUpdates: updates, Classes: classes},
	}

	outcome, err := ip.c.seal(ctx, env, out)
	if err != nil {
		// Put the batch back; nothing was persisted (§5 "a cancelled block
		// production attempt must abort before committing").
		ip.mu.Lock()
		ip.outcomes = append(outcomes, ip.outcomes...)
		ip.mu.Unlock()
		return MinedBlockOutcome{}, err
	}

	ip.session.reset()
	return outcome, nil
}
