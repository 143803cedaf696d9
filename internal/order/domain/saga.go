package domain

import "fmt"

type SagaState string

const (
	StateValidating        SagaState = "VALIDATING"
	StatePersisted         SagaState = "PERSISTED"
	StateStockSyncPending  SagaState = "STOCK_SYNC_PENDING"
	StateStockSyncPartial  SagaState = "STOCK_SYNC_PARTIAL"
	StateStockSyncComplete SagaState = "STOCK_SYNC_COMPLETE"
)

var validNext = map[SagaState][]SagaState{
	StateValidating:       {StatePersisted},
	StatePersisted:        {StateStockSyncPending},
	StateStockSyncPending: {StateStockSyncPartial, StateStockSyncComplete},
}

func (s SagaState) CanTransition(to SagaState) bool {
	for _, next := range validNext[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s SagaState) Terminal() bool {
	return s == StateStockSyncPartial || s == StateStockSyncComplete
}

// Saga tracks one order's progress through checkout.
type Saga struct {
	state SagaState
}

func NewSaga() *Saga {
	return &Saga{state: StateValidating}
}

func (s *Saga) State() SagaState { return s.state }

func (s *Saga) Advance(to SagaState) error {
	if !s.state.CanTransition(to) {
		return fmt.Errorf("invalid saga transition %s -> %s", s.state, to)
	}
	s.state = to
	return nil
}

func StateFor(status StockSyncStatus) SagaState {
	switch status {
	case StockSyncComplete:
		return StateStockSyncComplete
	case StockSyncPartial:
		return StateStockSyncPartial
	default:
		return StateStockSyncPending
	}
}
