package ledger

import (
	"errors"
	"fmt"
)

// ErrOutOfGas aborts the whole transaction; Try never absorbs it.
var ErrOutOfGas = errors.New("out of gas")

// Fixed costs charged for ledger operations.
const (
	GasTxBase         uint64 = 21000
	GasCall           uint64 = 2600
	GasNativeTransfer uint64 = 9000
	GasTokenTransfer  uint64 = 30000
	GasApprove        uint64 = 22000
	GasBalanceRead    uint64 = 2600
	GasStorageWrite   uint64 = 5000
	GasEvent          uint64 = 1500
)

// GasMeter tracks gas consumption against a limit. A zero limit never runs
// out.
type GasMeter struct {
	limit uint64
	used  uint64
}

func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Charge consumes amount or fails with ErrOutOfGas, in which case the meter
// is left fully consumed.
func (m *GasMeter) Charge(amount uint64) error {
	if m.limit > 0 && m.used+amount > m.limit {
		m.used = m.limit
		return fmt.Errorf("%w: limit %d", ErrOutOfGas, m.limit)
	}
	m.used += amount
	return nil
}

func (m *GasMeter) Used() uint64  { return m.used }
func (m *GasMeter) Limit() uint64 { return m.limit }

// Remaining returns the unconsumed gas, or zero for an unmetered meter.
func (m *GasMeter) Remaining() uint64 {
	if m.limit == 0 {
		return 0
	}
	return m.limit - m.used
}
