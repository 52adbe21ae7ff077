package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

// Relay switches. A flag that was never set reads as false.
const (
	RelayPaused          = "relay.paused"
	SwapsETHForTokensOff = "swaps.eth_for_tokens.disabled"
	SwapsTokensOff       = "swaps.tokens_for_tokens.disabled"
	SwapsTokensForETHOff = "swaps.tokens_for_eth.disabled"
	DepositFaucetEnabled = "wallets.deposit_faucet"
)

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
